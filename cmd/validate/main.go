package main

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/jwebster45206/affinity-engine/pkg/episode"
)

func main() {
	if len(os.Args) < 2 {
		fmt.Fprintf(os.Stderr, "Usage: %s <episode.json|dir> [...]\n", os.Args[0])
		os.Exit(1)
	}

	var files []string
	for _, arg := range os.Args[1:] {
		found, err := collectFiles(arg)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Validation failed: %v\n", err)
			os.Exit(1)
		}
		files = append(files, found...)
	}

	failed := 0
	for _, filename := range files {
		validator := &EpisodeValidator{}
		if err := validator.validateFile(filename); err != nil {
			fmt.Fprintf(os.Stderr, "Validation failed: %v\n", err)
			failed++
			continue
		}
		for _, w := range validator.warnings {
			fmt.Printf("  warning: %s\n", w)
		}
	}

	if failed > 0 {
		fmt.Fprintf(os.Stderr, "%d of %d episode files invalid\n", failed, len(files))
		os.Exit(1)
	}
	fmt.Printf("%d episode file(s) valid!\n", len(files))
}

// collectFiles expands a directory argument into the .json files beneath it.
func collectFiles(arg string) ([]string, error) {
	info, err := os.Stat(arg)
	if err != nil {
		return nil, err
	}
	if !info.IsDir() {
		return []string{arg}, nil
	}

	var files []string
	err = filepath.WalkDir(arg, func(path string, d os.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.IsDir() && strings.HasSuffix(path, ".json") {
			files = append(files, path)
		}
		return nil
	})
	return files, err
}

type EpisodeValidator struct {
	errors   []string
	warnings []string
}

func (v *EpisodeValidator) validateFile(filename string) error {
	fmt.Printf("Validating %s...\n", filename)

	baseName := filepath.Base(filename)
	if !strings.HasSuffix(baseName, ".json") {
		return fmt.Errorf("episode file must have .json extension: %s", baseName)
	}

	nameWithoutExt := strings.TrimSuffix(baseName, ".json")
	if !isValidID(nameWithoutExt) {
		return fmt.Errorf("episode filename '%s' must be lowercase snake_case (e.g., red_gate.json, not red-gate.json or RedGate.json)", baseName)
	}

	data, err := os.ReadFile(filename)
	if err != nil {
		return fmt.Errorf("failed to read file %s: %w", filename, err)
	}

	v.errors = nil
	v.warnings = nil

	ep, err := episode.Parse(data)
	if err != nil {
		return fmt.Errorf("file %s: %w", filename, err)
	}

	if ep.ID != nameWithoutExt {
		v.addError(fmt.Sprintf("episode id '%s' does not match filename '%s'", ep.ID, baseName))
	}
	v.validateEpisode(ep)

	if len(v.errors) > 0 {
		return fmt.Errorf("validation errors in %s:\n%s", filename, strings.Join(v.errors, "\n"))
	}
	return nil
}

func (v *EpisodeValidator) validateEpisode(ep *episode.Episode) {
	if len(ep.Beats) == 0 {
		v.addError("episode has no beats")
		return
	}

	completes := false
	for i, beat := range ep.Beats {
		last := i == len(ep.Beats)-1
		if !last && beat.CompletionCondition.Event == "" {
			v.addError(fmt.Sprintf("beat %d has no completion_condition and is not the last beat", beat.ID))
		}
		if beat.Trigger != "" {
			v.validateIDFormat(fmt.Sprintf("beat %d trigger", beat.ID), beat.Trigger)
		}
		if beat.CompletionCondition.Event != "" {
			v.validateIDFormat(fmt.Sprintf("beat %d completion event", beat.ID), beat.CompletionCondition.Event)
		}

		for j, action := range beat.Actions {
			if !action.Recognized() {
				v.warnings = append(v.warnings,
					fmt.Sprintf("beat %d action %d: unknown type %s will be skipped", beat.ID, j, action.Type()))
			}
			if c, ok := action.Command.(episode.CompleteEpisode); ok {
				completes = true
				if c.EpisodeID != "" && c.EpisodeID != ep.ID {
					v.warnings = append(v.warnings,
						fmt.Sprintf("beat %d completes a different episode: %s", beat.ID, c.EpisodeID))
				}
			}
		}
	}

	if !completes {
		v.warnings = append(v.warnings, "no COMPLETE_EPISODE action; the episode completes after its last beat")
	}
}

func (v *EpisodeValidator) validateIDFormat(fieldName, id string) {
	if !isValidID(id) {
		v.addError(fmt.Sprintf("%s '%s' must be lowercase snake_case", fieldName, id))
	}
}

func (v *EpisodeValidator) addError(msg string) {
	v.errors = append(v.errors, msg)
}

var validIDRegex = regexp.MustCompile(`^[a-z][a-z0-9_]*[a-z0-9]$|^[a-z]$`)

func isValidID(id string) bool {
	return validIDRegex.MatchString(id)
}
