package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/disintegration/imaging"
	_ "golang.org/x/image/webp"

	"wmclean/pkg/ocr"
	"wmclean/pkg/watermark"
)

// wmmask prints what the locator sees in one image and writes its mask.
func main() {
	out := flag.String("out", "", "mask output path (default <name>_mask.png next to the image)")
	cfgPath := flag.String("config", "", "locator YAML config")
	detections := flag.String("detections", "", "JSON detections file instead of OCR")
	langs := flag.String("lang", "eng", "tesseract languages, comma separated")
	flag.Parse()
	if flag.NArg() != 1 {
		fmt.Println("usage: go run ./cmd/wmmask [flags] <image>")
		os.Exit(2)
	}
	path := flag.Arg(0)

	cfg := watermark.DefaultConfig()
	if *cfgPath != "" {
		var err error
		if cfg, err = watermark.LoadConfig(*cfgPath); err != nil {
			fmt.Fprintln(os.Stderr, err)
			os.Exit(1)
		}
	}
	loc, err := watermark.NewLocator(cfg)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}

	img, err := imaging.Open(path, imaging.AutoOrientation(true))
	if err != nil {
		fmt.Fprintf(os.Stderr, "open %s: %v\n", path, err)
		os.Exit(1)
	}

	var det ocr.Detector = ocr.NewTesseractDetector(strings.Split(*langs, ",")...)
	if *detections != "" {
		dets, err := ocr.LoadDetections(*detections)
		if err != nil {
			fmt.Fprintln(os.Stderr, err)
			os.Exit(1)
		}
		det = ocr.StaticDetector(dets)
	}
	dets, err := det.Detect(context.Background(), img)
	if err != nil {
		fmt.Fprintf(os.Stderr, "ocr: %v\n", err)
		os.Exit(1)
	}

	res, err := loc.Analyze(img, dets)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	fmt.Printf("image %s: %dx%d, %d text regions\n", path, img.Bounds().Dx(), img.Bounds().Dy(), len(dets))
	for i, d := range dets {
		mark := " "
		if len(loc.Classify(dets[i:i+1])) == 1 {
			mark = "*"
		}
		fmt.Printf(" %s %-30q conf=%.2f quad=%v\n", mark, d.Text, d.Confidence, d.Quad)
	}
	fmt.Printf("source=%s matched=%d band=%v marked=%d\n", res.Source, len(res.Matched), res.Span, res.Mask.Count())

	if *out == "" {
		base := filepath.Base(path)
		*out = filepath.Join(filepath.Dir(path), strings.TrimSuffix(base, filepath.Ext(base))+"_mask.png")
	}
	if err := imaging.Save(res.Mask.Gray(), *out); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	fmt.Println("mask written to", *out)
}
