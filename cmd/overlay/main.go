// Command overlay renders a saved response-map snapshot over a background
// image without recomputing the maps.
package main

import (
	"flag"
	"fmt"
	"log"
	"os"

	"widefield-mapper/internal/render"
	"widefield-mapper/internal/snapshot"
	"widefield-mapper/internal/version"
)

func main() {
	log.SetFlags(log.LstdFlags | log.Lshortfile)

	in := flag.String("in", "", "Snapshot file to render")
	manifestPath := flag.String("manifest", "", "Run manifest naming the snapshot, background and threshold")
	background := flag.String("background", "", "Background image (overrides the manifest)")
	factor := flag.Int("factor", 2, "Background downsample factor")
	threshold := flag.Float64("threshold", 2, "Display z-score threshold")
	out := flag.String("o", "overlay.png", "Output image")
	showVersion := flag.Bool("version", false, "Print version and exit")
	flag.Parse()

	if *showVersion {
		fmt.Println("overlay", version.String())
		return
	}

	snapPath := *in
	bgPath := *background
	if *manifestPath != "" {
		mf, err := snapshot.LoadManifest(*manifestPath)
		if err != nil {
			log.Fatalf("Manifest: %v", err)
		}
		if snapPath == "" {
			snapPath = mf.Snapshot(*manifestPath)
		}
		if bgPath == "" {
			bgPath = mf.Config.BackgroundPath()
		}
		if !isSet("factor") {
			*factor = mf.Config.DownsampleFactor
		}
		if !isSet("threshold") {
			*threshold = mf.Config.ZscoreThreshold
		}
	}

	if snapPath == "" {
		fmt.Println("Usage: overlay -in <snapshot.fits> | -manifest <run.json> [-background <image>] [-o overlay.png]")
		os.Exit(1)
	}

	maps, meta, err := snapshot.Load(snapPath)
	if err != nil {
		log.Fatalf("Snapshot: %v", err)
	}
	fmt.Printf("Run %s: %d maps, response frames %d:%d\n", meta.RunID, len(maps), meta.Window.Start, meta.Window.Stop)

	if err := render.WriteOverlay(*out, maps, bgPath, *factor, *threshold); err != nil {
		log.Fatalf("Render: %v", err)
	}
}

// isSet reports whether the named flag was given on the command line.
func isSet(name string) bool {
	set := false
	flag.Visit(func(f *flag.Flag) {
		if f.Name == name {
			set = true
		}
	})
	return set
}
