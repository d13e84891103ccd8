// Package catalog lists the service and characteristic kinds the HomeKit bridge
// understands.
//
// The classifier in package shadow refers to these kinds symbolically
// ("Lightbulb", "On", "Brightness"). The homekit adapter owns the mapping from
// each kind to a concrete HAP type, so nothing outside this catalog can ever be
// handed to the bridge.
//
// # Usage
//
//	if !catalog.KnownService(catalog.Lightbulb) {
//	    return errors.New("unknown service")
//	}
//
//	for _, c := range catalog.Characteristics() {
//	    fmt.Println(c)
//	}
package catalog
