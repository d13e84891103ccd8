// Package hub models the devices reported by a Fibaro Home Center and talks to
// its REST API.
//
// A Device is the read-only descriptor the classifier works from. Properties
// are strongly typed: only the entries the bridge relies on are decoded, and
// each one is optional.
//
// # Siblings
//
// Several physical units expose more than one hub device (a thermostat head
// and its temperature sensor, for example). Devices sharing a parent are
// siblings; SiblingIndex groups them so the classifier can look a sibling up
// by device type.
//
// # Client
//
// Client is a thin wrapper over net/http. It performs no retries: a failed
// poll is simply repeated by the next sync pass.
//
//	client, err := hub.NewClient(cfg.Hub)
//	devices, err := client.Devices(ctx)
package hub
