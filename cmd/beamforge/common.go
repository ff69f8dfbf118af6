package main

import (
	"fmt"

	"github.com/praetorian-inc/beamforge/pkg/providers"
)

func listProviders() {
	fmt.Println("Registered Providers")
	fmt.Println("=====================")
	fmt.Println()

	fmt.Printf("Text (%d):\n", providers.Text.Count())
	for _, name := range providers.Text.List() {
		fmt.Printf("  - %s\n", name)
	}
	fmt.Println()

	fmt.Printf("Image (%d):\n", providers.Image.Count())
	for _, name := range providers.Image.List() {
		fmt.Printf("  - %s\n", name)
	}
	fmt.Println()

	fmt.Printf("Evaluation (%d):\n", providers.Evaluation.Count())
	for _, name := range providers.Evaluation.List() {
		fmt.Printf("  - %s\n", name)
	}
	fmt.Println()

	fmt.Printf("Judge (%d):\n", providers.Judge.Count())
	for _, name := range providers.Judge.List() {
		fmt.Printf("  - %s\n", name)
	}
	fmt.Println()

	fmt.Printf("Critique (%d):\n", providers.Critique.Count())
	for _, name := range providers.Critique.List() {
		fmt.Printf("  - %s\n", name)
	}
}
