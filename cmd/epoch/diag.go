package main

import (
	"fmt"
	"runtime"
	"sync"

	"golang.org/x/sync/errgroup"

	"github.com/epochengine/epoch/assets"
	"github.com/epochengine/epoch/config"
	"github.com/epochengine/epoch/host"
	"github.com/epochengine/epoch/world"
)

// runList prints the archive index: id, kind, decoded size and path
// for every record, in path order.
func runList(cfg *config.Config) error {
	pkg, err := openPackage(cfg)
	if err != nil {
		return err
	}

	fmt.Printf("%d records in %s\n", pkg.Len(), cfg.PackagePath())
	for _, p := range pkg.Paths() {
		id, _ := pkg.Lookup(p)
		kind, _ := pkg.KindOf(id)
		rec, err := pkg.Record(id)
		if err != nil {
			fmt.Printf("%08x  %-11s  %10s  %s  (%v)\n", uint32(id), kind, "-", p, err)
			continue
		}
		fmt.Printf("%08x  %-11s  %10d  %s\n", uint32(id), kind, len(rec.Data), p)
	}
	return nil
}

// runVerify decodes every record in the archive and reports the ones
// that fail. Scripts verify against the boot-time native table, so a
// reference to an unbound native call surfaces here too.
func runVerify(cfg *config.Config) error {
	pkg, err := openPackage(cfg)
	if err != nil {
		return err
	}
	table, err := host.NewTable(host.Options{World: world.NewGame()})
	if err != nil {
		return err
	}

	paths := pkg.Paths()
	var mu sync.Mutex
	var bad int

	g := new(errgroup.Group)
	g.SetLimit(runtime.GOMAXPROCS(0))
	for _, p := range paths {
		p := p
		g.Go(func() error {
			id, _ := pkg.Lookup(p)
			rec, err := pkg.Record(id)
			if err == nil {
				_, err = assets.Decode(rec, table)
			}
			if err == nil {
				return nil
			}
			mu.Lock()
			bad++
			fmt.Printf("FAIL  %s: %v\n", p, err)
			mu.Unlock()
			return fmt.Errorf("%s: %w", p, err)
		})
	}
	err = g.Wait()

	fmt.Printf("verified %d records, %d failed\n", len(paths), bad)
	return err
}
