// Package fedcat provides a Go client for the fedcat federated catalog HTTP API.
//
// Queries fan out across every federated source on the server side; the client
// sees one aggregated response with per-source details.
//
//	client, _ := fedcat.New("http://localhost:8080", fedcat.WithAPIKey("secret"))
//	res, _ := client.Query(ctx, fedcat.Query{
//	    Text:   "harbour",
//	    Equals: map[string]string{"region": "north"},
//	    Size:   20,
//	})
//	for _, d := range res.Details {
//	    if d.Error != "" {
//	        log.Printf("source %s failed: %s", d.Source, d.Error)
//	    }
//	}
//
// Resources are fetched by record id, product URI or derived URI:
//
//	payload, _ := client.Resource(ctx, fedcat.ResourceByID("doc-1").WithOffset(1024))
package fedcat
