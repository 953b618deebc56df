// eyestate-classify - classify eye images offline
//
// Each argument is an image file. Without -detect every image is treated as
// a single eye crop; with -detect eyes are located with the pigo cascades.
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"image"
	"os"
	"path/filepath"
	"strings"

	"github.com/disintegration/imaging"
	"github.com/teslashibe/go-eyestate/internal/log"
	"github.com/teslashibe/go-eyestate/pkg/classifier"
	"github.com/teslashibe/go-eyestate/pkg/detection"
	"github.com/teslashibe/go-eyestate/pkg/eyestate"
	"github.com/teslashibe/go-eyestate/pkg/still"
	"golang.org/x/term"
)

const (
	ansiGreen = "\033[32m"
	ansiRed   = "\033[31m"
	ansiReset = "\033[0m"
)

type output struct {
	File        string                `json:"file"`
	Predictions []eyestate.Prediction `json:"predictions"`
	Skipped     int                   `json:"skipped"`
	Annotated   string                `json:"annotated,omitempty"`
}

func main() {
	os.Exit(run())
}

func run() int {
	model := flag.String("model", "models/eye_state.tflite", "TFLite model path")
	inspect := flag.Bool("inspect", false, "Print the model's tensor signature and exit")
	detect := flag.Bool("detect", false, "Locate eyes with pigo instead of treating each image as a crop")
	faceCascade := flag.String("face-cascade", "models/facefinder", "pigo face cascade")
	pupilCascade := flag.String("pupil-cascade", "models/puploc", "pigo pupil cascade")
	norm := flag.String("normalize", string(eyestate.DefaultNormalization), "Input normalization: passthrough, unit, symmetric")
	threads := flag.Int("threads", 1, "Interpreter threads")
	outDir := flag.String("out", "", "Write annotated PNGs into this directory")
	asJSON := flag.Bool("json", false, "Print one JSON object per image")
	logLevel := flag.String("log-level", "warn", "Log level")
	flag.Parse()

	log.Init(*logLevel)

	if *inspect {
		info, err := classifier.Inspect(*model)
		if err != nil {
			fmt.Fprintf(os.Stderr, "❌ %v\n", err)
			return eyestate.ExitCode(err)
		}
		fmt.Printf("📐 %s\n", info)
		if err := info.Check(); err != nil {
			fmt.Printf("⚠️  not usable: %v\n", err)
			return eyestate.ExitModel
		}
		fmt.Println("✅ signature matches (1, 150, 150, 3) float32 → 1 value")
		return eyestate.ExitOK
	}

	if flag.NArg() == 0 {
		fmt.Fprintln(os.Stderr, "usage: eyestate-classify [flags] image...")
		flag.PrintDefaults()
		return eyestate.ExitConfig
	}

	normalization, err := eyestate.ParseNormalization(*norm)
	if err != nil {
		fmt.Fprintf(os.Stderr, "❌ %v\n", err)
		return eyestate.ExitCode(err)
	}

	cls, err := classifier.Load(classifier.Config{ModelPath: *model, Threads: *threads})
	if err != nil {
		fmt.Fprintf(os.Stderr, "❌ %v\n", err)
		return eyestate.ExitCode(err)
	}
	defer cls.Close()

	var det still.ImageDetector
	if *detect {
		cfg := detection.DefaultConfig()
		cfg.FaceCascadePath, cfg.PupilCascadePath = *faceCascade, *pupilCascade
		p, err := detection.NewPigo(cfg)
		if err != nil {
			fmt.Fprintf(os.Stderr, "❌ %v\n", err)
			return eyestate.ExitCode(err)
		}
		det = p
	}

	if *outDir != "" {
		if err := os.MkdirAll(*outDir, 0o755); err != nil {
			fmt.Fprintf(os.Stderr, "❌ %v\n", err)
			return eyestate.ExitRuntime
		}
	}

	files := flag.Args()
	images := make([]image.Image, 0, len(files))
	for _, f := range files {
		img, err := imaging.Open(f, imaging.AutoOrientation(true))
		if err != nil {
			fmt.Fprintf(os.Stderr, "❌ %s: %v\n", f, err)
			return eyestate.ExitRuntime
		}
		images = append(images, img)
	}

	results, err := still.Classify(context.Background(), cls, det, normalization, images...)
	if err != nil {
		fmt.Fprintf(os.Stderr, "❌ %v\n", err)
		return eyestate.ExitCode(err)
	}

	color := term.IsTerminal(int(os.Stdout.Fd())) && !*asJSON
	enc := json.NewEncoder(os.Stdout)
	for i, r := range results {
		out := output{File: files[i], Predictions: r.Predictions, Skipped: r.Skipped}
		if *outDir != "" {
			out.Annotated = annotatedPath(*outDir, files[i])
			if err := imaging.Save(r.Annotated, out.Annotated); err != nil {
				fmt.Fprintf(os.Stderr, "⚠️  %s: %v\n", out.Annotated, err)
				out.Annotated = ""
			}
		}

		if *asJSON {
			enc.Encode(out)
			continue
		}
		printText(out, color)
	}
	return eyestate.ExitOK
}

func annotatedPath(dir, file string) string {
	base := strings.TrimSuffix(filepath.Base(file), filepath.Ext(file))
	return filepath.Join(dir, base+"_annotated.png")
}

func printText(out output, color bool) {
	if len(out.Predictions) == 0 {
		fmt.Printf("%s: no eyes found\n", out.File)
		return
	}
	for _, p := range out.Predictions {
		text := p.Text()
		if color {
			c := ansiRed
			if p.Label == eyestate.Open {
				c = ansiGreen
			}
			text = c + text + ansiReset
		}
		r := p.Region
		fmt.Printf("%s: %s [%d,%d %dx%d]\n", out.File, text, r.Min.X, r.Min.Y, r.Dx(), r.Dy())
	}
	if out.Annotated != "" {
		fmt.Printf("   🖼️  %s\n", out.Annotated)
	}
}
