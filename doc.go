// Package dyntrans provides cached, on-demand translation of dynamic
// application content.
//
// Dyntrans coordinates translation for rendered views: given the content
// items visible in a view and the active locale, it resolves what is already
// translated, sends the rest to a pluggable provider (OpenAI, etc.), persists
// the results in a shared store, and serves consistent per-item state across
// locale switches and content edits. A batch gap-filling engine drives the
// same store and provider contracts for bulk pre-translation.
//
// Basic usage:
//
//	import (
//	    "context"
//	    "github.com/ZaguanLabs/dyntrans"
//	    "github.com/ZaguanLabs/dyntrans/provider"
//	    "github.com/ZaguanLabs/dyntrans/store"
//	)
//
//	func main() {
//	    p := provider.NewOpenAIProvider(provider.OpenAIConfig{
//	        APIKey: os.Getenv("OPENAI_API_KEY"),
//	    })
//	    s := store.NewMemoryStore()
//	    locales := dyntrans.NewStaticSource("es_ES", "en_US", []string{"es_ES", "fr_FR"})
//
//	    coord := dyntrans.NewCoordinator("product-page", s, p, locales)
//	    err := coord.Sync(context.Background(), []dyntrans.ContentItem{
//	        {ContentType: "product", ContentID: "sku-1", Text: "Wireless Mouse"},
//	    })
//	    if err != nil {
//	        log.Fatal(err)
//	    }
//	    fmt.Println(coord.GetTranslation("product", "sku-1", "Wireless Mouse"))
//	}
package dyntrans
