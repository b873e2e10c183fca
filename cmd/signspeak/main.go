package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/loqalabs/signspeak/internal/capture"
	"github.com/loqalabs/signspeak/internal/classifier"
	"github.com/loqalabs/signspeak/internal/config"
)

var version = "0.1.0-dev"

func main() {
	if len(os.Args) < 2 {
		fmt.Fprintln(os.Stderr, "expected 'validate', 'classify', 'labels' or 'version'")
		os.Exit(2)
	}

	var err error
	switch os.Args[1] {
	case "validate":
		err = runValidate(os.Args[2:])
	case "classify":
		err = runClassify(os.Args[2:])
	case "labels":
		err = runLabels(os.Args[2:])
	case "version":
		fmt.Println(version)
	default:
		fmt.Fprintf(os.Stderr, "unknown command %q\n", os.Args[1])
		os.Exit(2)
	}
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func runValidate(args []string) error {
	fs := flag.NewFlagSet("validate", flag.ExitOnError)
	path := fs.String("file", "signspeak.yaml", "Path to configuration file")
	_ = fs.Parse(args)

	if _, err := config.Load(*path); err != nil {
		return err
	}
	fmt.Println("config valid")
	return nil
}

// runClassify sends one image file to the configured classifier and prints
// the resulting observation as JSON.
func runClassify(args []string) error {
	fs := flag.NewFlagSet("classify", flag.ExitOnError)
	cfgPath := fs.String("config", "", "Path to configuration file (defaults when empty)")
	imagePath := fs.String("image", "", "Path to a JPEG or PNG image")
	_ = fs.Parse(args)
	if *imagePath == "" {
		return fmt.Errorf("classify: -image is required")
	}

	cfg, err := config.Load(*cfgPath)
	if err != nil {
		return err
	}
	labels, err := classifier.LoadLabels(cfg.Classifier.LabelsPath)
	if err != nil {
		return err
	}
	cls, err := classifier.New(cfg.Classifier, labels)
	if err != nil {
		return err
	}

	src, err := capture.OpenFile(*imagePath)
	if err != nil {
		return err
	}
	defer src.Close()

	ctx, cancel := context.WithTimeout(context.Background(), time.Duration(cfg.Classifier.TimeoutMS+1000)*time.Millisecond)
	defer cancel()
	frame, err := src.Frame(ctx)
	if err != nil {
		return err
	}
	obs, err := cls.Classify(ctx, frame)
	if err != nil {
		return err
	}

	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(map[string]any{
		"observation": obs,
		"confident":   obs.Confident(cfg.Session.ConfidenceThreshold),
		"threshold":   cfg.Session.ConfidenceThreshold,
	})
}

func runLabels(args []string) error {
	fs := flag.NewFlagSet("labels", flag.ExitOnError)
	path := fs.String("file", "labels.json", "Path to labels file")
	_ = fs.Parse(args)

	labels, err := classifier.LoadLabels(*path)
	if err != nil {
		return err
	}
	for i, label := range labels {
		fmt.Printf("%d\t%s\n", i, label)
	}
	return nil
}
