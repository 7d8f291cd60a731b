// Package gateway dispatches inbound requests to image processors.
//
// A Builder collects routes during setup. Each Register call compiles the
// route pattern and URL template immediately, so setup errors surface
// synchronously. Build freezes the table into an immutable Gateway that
// tests routes in registration order; the first match wins and a request
// that matches nothing is handed back to the surrounding framework.
//
// # Usage
//
//	b := gateway.NewBuilder(queue, gateway.WithLogger(logger))
//	err := b.Register("/thumb/:name", "https://images.example.com/:name",
//	    processor.Options{CacheExpiration: &day},
//	    func(img *imaging.Image, c *processor.Context) (processor.Result, error) {
//	        return processor.Done(img.Resize(200, 0)), nil
//	    })
//	if err != nil {
//	    log.Fatal(err)
//	}
//	gw := b.Build()
//
//	engine := gin.New()
//	engine.Use(gw.GinHandler())
//
// # Configuration Reload
//
// A Holder publishes the current Gateway through an atomic pointer, so a
// reload swaps the whole table while in-flight requests keep the one they
// started with.
package gateway
