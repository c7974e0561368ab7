// Package ragstore embeds the tag-aware document retrieval engine in a Go
// program: ingest text and files as tagged chunks, then query them by
// meaning, by filename or by tag.
//
//	client, _ := ragstore.New(ctx,
//	    ragstore.WithSQLite("docs.db"),
//	    ragstore.WithHashingEmbedder(256),
//	)
//	defer client.Close()
//
//	_, _ = client.IngestText(ctx, "rotate keys every 90 days",
//	    ragstore.WithSource("security.md"), ragstore.WithTags("policy"))
//	chunks, _ := client.Query(ctx, "key rotation", ragstore.QueryOptions{Tags: []string{"policy"}})
//	docs, _ := client.Search(ctx, "security", ragstore.SearchOptions{})
//
// Backends: WithMemory (default), WithSQLite, WithValkey and WithRedis.
// Embedders: WithHashingEmbedder (default, offline), WithOpenAI, or any
// Embedder via WithEmbedder.
package ragstore
