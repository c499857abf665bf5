package main

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/AlecAivazis/survey/v2"
	"github.com/apex/log"
	"github.com/fatih/color"

	"github.com/leptos-null/tbd/container"
	"github.com/leptos-null/tbd/dsccache"
	"github.com/leptos-null/tbd/emit"
	"github.com/leptos-null/tbd/fat"
	"github.com/leptos-null/tbd/image"
	"github.com/leptos-null/tbd/macho"
	"github.com/leptos-null/tbd/source"
	"github.com/leptos-null/tbd/stub"
	"github.com/leptos-null/tbd/tbderr"
	"github.com/leptos-null/tbd/types"
)

// runPath drives one -p group end to end: open, classify, parse every
// contained architecture, merge, and write. It returns false on any
// per-path failure so the caller can set a nonzero exit code while
// continuing with sibling -p groups, per spec.md §6's "Exit code 0 on
// complete success, 1 otherwise".
func runPath(o *pathOptions) bool {
	info, err := os.Stat(o.Path)
	if err != nil {
		log.Errorf("%s: %v", o.Path, err)
		return false
	}
	if info.IsDir() {
		if o.Recurse == recurseNone {
			log.Errorf("%s: is a directory; pass -r to recurse", o.Path)
			return false
		}
		return runDirectory(o)
	}
	return runFile(o, o.Path, o.Output)
}

func runDirectory(o *pathOptions) bool {
	ok := true
	converted, skipped := 0, 0
	err := filepath.Walk(o.Path, func(p string, fi os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		if fi.IsDir() {
			if o.Recurse == recurseOnce && p != o.Path {
				return filepath.SkipDir
			}
			return nil
		}
		if isLibrary, _ := classifyLibrary(p); !isLibrary {
			log.Infof("%s: not a Mach-O library, skipped", p)
			skipped++
			return nil
		}
		out := ""
		if o.Output != "" && o.Output != "stdout" {
			rel, err := filepath.Rel(o.Path, p)
			if err != nil {
				rel = filepath.Base(p)
			}
			if !o.MaintainDirectories {
				rel = filepath.Base(p)
			}
			out = filepath.Join(o.Output, rel+".tbd")
		}
		if !runFile(o, p, out) {
			ok = false
		} else {
			converted++
		}
		return nil
	})
	if err != nil {
		log.Errorf("%s: %v", o.Path, err)
		return false
	}
	log.Infof("%s: converted %d libraries, skipped %d files", o.Path, converted, skipped)
	return ok
}

func runFile(o *pathOptions, path, output string) bool {
	resolved, err := filepath.EvalSymlinks(path)
	if err != nil {
		resolved = path
	}

	src, err := source.OpenFile(resolved)
	if err != nil {
		log.Errorf("%s: %v", path, err)
		return false
	}
	defer src.Close()

	kind, err := container.Classify(src)
	if err != nil {
		log.Errorf("%s: %v", path, err)
		return false
	}
	if kind == types.KindDyldSharedCache {
		return runDSCFile(o, path, output, src)
	}

	model, err := buildModel(o, path, kind, src)
	if err != nil {
		tagErr, tagged := tbderr.Of(err)
		if tagged && tagErr.Recoverable() {
			if p, ok := promptPlatform(path); ok {
				o.Platform = p
				model, err = buildModel(o, path, kind, src)
			}
		}
	}
	if err != nil {
		log.Errorf("%s: %v", path, err)
		return false
	}

	return writeModel(o, path, output, model)
}

// runDSCFile extracts every dyld shared-cache image o's DSCFilters
// select (or every image, with none given) and writes one tbd per
// image, per spec.md §4.7/§4.8.
func runDSCFile(o *pathOptions, path, output string, src source.Source) bool {
	cache, err := dsccache.Open(src)
	if err != nil {
		log.Errorf("%s: %v", path, err)
		return false
	}
	log.Debugf("%s: cache uuid %s", path, cache.Header.UUID)

	var filters []*dsccache.Filter
	for _, f := range o.DSCFilters {
		switch f.kind {
		case "number":
			filters = append(filters, &dsccache.Filter{Kind: dsccache.FilterNumber, Number: f.num})
		case "directory":
			filters = append(filters, &dsccache.Filter{Kind: dsccache.FilterDirectory, Value: f.value})
		case "filename":
			filters = append(filters, &dsccache.Filter{Kind: dsccache.FilterFilename, Value: f.value})
		case "path":
			filters = append(filters, &dsccache.Filter{Kind: dsccache.FilterExactPath, Value: f.value})
		}
	}
	sel := dsccache.NewSelection(filters...)

	ok := true
	err = cache.Each(sel, func(img dsccache.Image) error {
		f, parseErr := macho.Parse(img.Source, o.parseOptions())
		if parseErr != nil {
			log.Errorf("%s (image %s): %v", path, img.Path, parseErr)
			ok = false
			return nil
		}
		model, mergeErr := stub.Merge([]*image.Facts{f})
		if mergeErr != nil {
			log.Errorf("%s (image %s): %v", path, img.Path, mergeErr)
			ok = false
			return nil
		}

		imgOutput := output
		if output != "" && output != "stdout" {
			name := filepath.Base(img.Path)
			if o.MaintainDirectories {
				name = strings.TrimPrefix(img.Path, "/")
			}
			imgOutput = filepath.Join(output, name+".tbd")
		}
		if !writeModel(o, img.Path, imgOutput, model) {
			ok = false
		}
		return nil
	})
	if err != nil {
		log.Errorf("%s: %v", path, err)
		return false
	}
	for _, w := range sel.Warnings() {
		if !o.DontPrintWarnings {
			log.Warn(w)
		}
	}
	return ok
}

func buildModel(o *pathOptions, path string, kind types.Kind, src source.Source) (*stub.Model, error) {
	var facts []*image.Facts
	switch kind {
	case types.KindFat32, types.KindFat64:
		slices, err := fat.Dispatch(src, kind)
		if err != nil {
			return nil, err
		}
		for _, sl := range slices {
			if !archSelected(o, sl.Arch) {
				continue
			}
			f, err := macho.Parse(sl.Source, o.parseOptions())
			if err != nil {
				return nil, err
			}
			facts = append(facts, f)
		}
	case types.KindThin32, types.KindThin32Swapped, types.KindThin64, types.KindThin64Swapped:
		f, err := macho.Parse(src, o.parseOptions())
		if err != nil {
			return nil, err
		}
		if archSelected(o, f.Arch) {
			facts = append(facts, f)
		}
	default:
		return nil, tbderr.New(tbderr.KindNotAMachO, "unrecognized container")
	}

	if len(facts) == 0 {
		return nil, tbderr.New(tbderr.KindNoProvidedArchitectures, "no architectures selected")
	}
	return stub.Merge(facts)
}

func archSelected(o *pathOptions, a types.Arch) bool {
	if len(o.ArchFilter) == 0 {
		return true
	}
	for _, name := range o.ArchFilter {
		if name == a.Name {
			return true
		}
	}
	return false
}

func writeModel(o *pathOptions, path, output string, model *stub.Model) bool {
	if len(o.ArchOverride) > 0 {
		var set types.ArchSet
		for _, name := range o.ArchOverride {
			a, ok := types.LookupName(name)
			if !ok {
				log.Errorf("%s: unrecognized architecture override %q", path, name)
				return false
			}
			set |= types.ArchSet(0).With(a)
		}
		model.Archs = set
	}

	var w *os.File
	switch {
	case output == "stdout":
		w = os.Stdout
	case output == "":
		w = nil
	default:
		if err := os.MkdirAll(filepath.Dir(output), 0o755); err != nil {
			log.Errorf("%s: %v", output, err)
			return false
		}
		f, err := os.Create(output)
		if err != nil {
			log.Errorf("%s: %v", output, err)
			return false
		}
		defer f.Close()
		w = f
	}
	if w == nil {
		dest := strings.TrimSuffix(path, filepath.Ext(path)) + ".tbd"
		f, err := os.Create(dest)
		if err != nil {
			log.Errorf("%s: %v", dest, err)
			return false
		}
		defer f.Close()
		w = f
		output = dest
	}

	if err := emit.WriteVerified(w, model, o.Dialect); err != nil {
		log.Errorf("%s: %v", path, err)
		return false
	}
	if output != "stdout" {
		log.Info(color.GreenString("wrote %s", output))
	}
	return true
}

func promptPlatform(path string) (types.Platform, bool) {
	names := make([]string, 0, len(types.AllPlatforms()))
	for _, p := range types.AllPlatforms() {
		names = append(names, p.String())
	}
	var answer string
	prompt := &survey.Select{
		Message: fmt.Sprintf("%s: no platform found; choose one to continue", path),
		Options: names,
	}
	if err := survey.AskOne(prompt, &answer); err != nil {
		return types.PlatformUnknown, false
	}
	p, ok := types.PlatformByName(answer)
	return p, ok
}

