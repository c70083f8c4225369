// Epoch CLI - headless runner and diagnostics for archived game data
package main

import (
	"flag"
	"fmt"
	"os"

	"github.com/tliron/commonlog"
	_ "github.com/tliron/commonlog/simple"

	"github.com/epochengine/epoch/config"
	"github.com/epochengine/epoch/world"
)

var (
	configPath = flag.String("config", "epoch.toml", "engine configuration file")
	slot       = flag.Int("slot", 0, "save slot to resume (0 starts a new game)")
	ticks      = flag.Int("ticks", 600, "engine ticks to run before exiting")
	list       = flag.Bool("list", false, "print the archive index and exit")
	verify     = flag.Bool("verify", false, "decode every record, report failures, exit")
	verbosity  = flag.Int("verbose", 0, "log verbosity (0 quiet, 1 info, 2 debug)")
)

func main() {
	flag.Usage = func() {
		fmt.Fprintf(os.Stderr, "Epoch - headless engine runner\n\n")
		fmt.Fprintf(os.Stderr, "Usage:\n")
		fmt.Fprintf(os.Stderr, "  epoch -config epoch.toml [-slot N] [-ticks N]\n")
		fmt.Fprintf(os.Stderr, "  epoch -config epoch.toml -list\n")
		fmt.Fprintf(os.Stderr, "  epoch -config epoch.toml -verify\n\n")
		fmt.Fprintf(os.Stderr, "Options:\n")
		flag.PrintDefaults()
	}
	flag.Parse()
	commonlog.Configure(*verbosity, nil)

	cfg, err := config.Load(*configPath)
	if err != nil {
		fatal(err)
	}
	if err := cfg.Validate(); err != nil {
		fatal(err)
	}

	switch {
	case *list:
		err = runList(cfg)
	case *verify:
		err = runVerify(cfg)
	default:
		err = runGame(cfg, *slot, *ticks)
	}
	if err != nil {
		fatal(err)
	}
}

func fatal(err error) {
	fmt.Fprintf(os.Stderr, "epoch: %v\n", err)
	os.Exit(1)
}

// runGame boots the engine and advances it for a bounded number of
// ticks, standing in for the player where a wait needs one.
func runGame(cfg *config.Config, slotN, ticks int) error {
	profile, err := config.LoadProfile(cfg.ProfilePath())
	if err != nil {
		return err
	}

	var state *world.State
	if slotN > 0 {
		store, err := world.OpenSlots(cfg.SaveDirPath())
		if err != nil {
			return err
		}
		defer store.Close()
		if state, err = store.LoadSlot(slotN); err != nil {
			return err
		}
	} else {
		state = world.NewGame()
	}

	eng, err := newEngine(cfg, profile, state, engineOptions{Autoplay: true})
	if err != nil {
		return err
	}
	defer eng.Close()

	id, x, y, err := bootTarget(eng.pkg, state)
	if err != nil {
		return err
	}
	if err := eng.EnterMap(id, x, y); err != nil {
		return err
	}

	ran := eng.Run(ticks)
	st := eng.cache.Stats()
	fmt.Printf("ran %d ticks in %s: %d threads live, %d assets resident (%d KiB)\n",
		ran, state.LocationName(), eng.sched.Live(), st.Entries, st.Bytes>>10)
	return nil
}
