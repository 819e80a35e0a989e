// Package pkg provides the core libraries for tilepaper, a tiled wallpaper
// composer.
//
// # Overview
//
// Tilepaper fills the desktop background with a grid of square pictures
// taken from a folder and replaces a few of them at random intervals. The
// pkg directory is organized into four main areas:
//
//  1. Geometry and pixels: [layout] plans the grid, [canvas] owns the pixel
//     buffer and its cells.
//  2. Inputs: [source] scans the picture folder, [imagecache] decodes and
//     scales pictures once and shares the result, [display] reports
//     monitors and topology changes.
//  3. Orchestration: [engine] runs refresh cycles and reconfiguration,
//     [wallpaper] hands finished files to the desktop.
//  4. Surfaces and support: [config], [control], [observability],
//     [errors], [retry] and [buildinfo].
//
// # Architecture
//
// One refresh cycle flows like this:
//
//	picture folder ──▶ source.Scan ──▶ pool
//	                                    │ choose cells and pictures
//	                                    ▼
//	            imagecache.GetOrLoad (decode, crop, scale; shared)
//	                                    │
//	                                    ▼
//	              canvas.Commit (blit into the cell rectangle)
//	                                    │ snapshot
//	                                    ▼
//	          JPEG in the destination folder ──▶ wallpaper.Applier
//
// Monitor changes reported by a [display.Notifier] make the engine rebuild
// its canvases and refill every cell.
//
// # Quick Start
//
//	cfg := config.Default()
//	cfg.SourceFolder = "/home/me/Pictures"
//
//	e, err := engine.New(cfg, engine.WithLogger(logger))
//	if err != nil {
//	    return err
//	}
//	if err := e.Start(ctx); err != nil {
//	    return err
//	}
//	defer func() { <-e.Close() }()
//
// [layout]: https://pkg.go.dev/github.com/matzehuels/tilepaper/pkg/layout
// [canvas]: https://pkg.go.dev/github.com/matzehuels/tilepaper/pkg/canvas
// [source]: https://pkg.go.dev/github.com/matzehuels/tilepaper/pkg/source
// [imagecache]: https://pkg.go.dev/github.com/matzehuels/tilepaper/pkg/imagecache
// [display]: https://pkg.go.dev/github.com/matzehuels/tilepaper/pkg/display
// [engine]: https://pkg.go.dev/github.com/matzehuels/tilepaper/pkg/engine
// [wallpaper]: https://pkg.go.dev/github.com/matzehuels/tilepaper/pkg/wallpaper
// [config]: https://pkg.go.dev/github.com/matzehuels/tilepaper/pkg/config
// [control]: https://pkg.go.dev/github.com/matzehuels/tilepaper/pkg/control
// [observability]: https://pkg.go.dev/github.com/matzehuels/tilepaper/pkg/observability
// [errors]: https://pkg.go.dev/github.com/matzehuels/tilepaper/pkg/errors
// [retry]: https://pkg.go.dev/github.com/matzehuels/tilepaper/pkg/retry
// [buildinfo]: https://pkg.go.dev/github.com/matzehuels/tilepaper/pkg/buildinfo
// [display.Notifier]: https://pkg.go.dev/github.com/matzehuels/tilepaper/pkg/display#Notifier
package pkg
