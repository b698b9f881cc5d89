// Package datamine provides a Go client library for the Upsight DataMine
// analytics query service.
//
// The client communicates with the DataMine dashboard API over HTTP,
// submitting queries as background jobs, polling until results materialize,
// and streaming the delimited result payload row by row.
//
// # Getting Started
//
// Create a client, connect, and execute a query:
//
//	client, err := datamine.NewClient("https://analytics.upsight.com/dashboard/datamine2")
//	if err != nil {
//	    log.Fatal(err)
//	}
//	client.UserPassword("analyst@example.com", "secret")
//
//	session, err := client.Connect(ctx)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer session.Close()
//
//	columns, err := session.Execute(ctx, "SELECT item, SUM(qty) FROM sales GROUP BY item")
//	if err != nil {
//	    log.Fatal(err)
//	}
//
// # Sessions
//
// Connect probes the service until it responds healthy, then hands back a
// Session. A Session runs one query at a time; calling Execute again discards
// any unread results from the previous query. Sessions are safe for use from
// multiple goroutines.
//
// # Result Streaming
//
// Results stream lazily from the server. Use FetchOne for row-at-a-time
// iteration, FetchMany or FetchAll to buffer rows, or Download to write the
// full result set to a CSV file:
//
//	for {
//	    row, err := session.FetchOne()
//	    if err != nil {
//	        log.Fatal(err)
//	    }
//	    if row == nil {
//	        break
//	    }
//	    // process row
//	}
//
// # Tunables
//
// Poll cadence and retry budgets are configurable through fluent setters or
// URL parameters:
//
//	client, err := datamine.NewClient("https://analytics.upsight.com/dashboard/datamine2?poll_interval=30s&max_attempts=5")
package datamine
