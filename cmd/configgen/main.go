package main

import (
	"flag"
	"log"

	"github.com/davrell/pktwire/internal/config"
)

func main() {
	kind := flag.String("kind", "daemon", "config kind: daemon|client")
	output := flag.String("output", "", "output path for config template")
	validate := flag.Bool("validate", false, "validate an existing config file")
	input := flag.String("input", "", "config path for validation (defaults to per-kind cmd path)")
	force := flag.Bool("force", false, "overwrite existing config file")
	flag.Parse()

	if *validate {
		path := *input
		if path == "" {
			switch *kind {
			case "daemon":
				path = "cmd/pktwired/config.toml"
			case "client":
				path = "cmd/pktwire/config.toml"
			default:
				log.Fatalf("unknown kind: %s", *kind)
			}
		}

		switch *kind {
		case "daemon":
			if _, err := config.LoadDaemonConfig(path); err != nil {
				log.Fatal(err)
			}
		case "client":
			if _, err := config.LoadClientConfig(path); err != nil {
				log.Fatal(err)
			}
		default:
			log.Fatalf("unknown kind: %s", *kind)
		}
		log.Printf("Validated %s config at %s", *kind, path)
		return
	}

	target := *output
	if target == "" {
		switch *kind {
		case "daemon":
			target = "cmd/pktwired/config.toml"
		case "client":
			target = "cmd/pktwire/config.toml"
		default:
			log.Fatalf("unknown kind: %s", *kind)
		}
	}

	if err := config.WriteTemplate(target, *kind, *force); err != nil {
		log.Fatal(err)
	}
	log.Printf("Wrote %s config template to %s", *kind, target)
}
