package main

import (
	"fmt"
	"os"
	"strings"

	"github.com/pkg/errors"
	"github.com/spf13/viper"
	"github.com/tdewolff/argp"
	"github.com/tdewolff/parcel"
	"github.com/tdewolff/parcel/format"
	"github.com/tdewolff/parcel/geohash"
	"github.com/tdewolff/parcel/render"
	"github.com/tdewolff/parcel/store"
	"go.uber.org/zap"
)

var cfg Config

type Split struct {
	Budget  int    `short:"b" default:"-1" desc:"Work units per call, 0 is unbounded (default from config)"`
	Geohash bool   `short:"g" desc:"Subject and clip are comma separated geohashes instead of files"`
	Output  string `short:"o" desc:"Output file, its extension sets the format (default: points to stdout)"`
	Subject string `index:"0" desc:"Subject polygon"`
	Clip    string `index:"1" desc:"Clipping polygon"`
}

type Start struct {
	Budget  int    `short:"b" default:"-1" desc:"Work units per call, 0 is unbounded (default from config)"`
	Geohash bool   `short:"g" desc:"Subject and clip are comma separated geohashes instead of files"`
	ID      string `index:"0" desc:"Operation ID"`
	Subject string `index:"1" desc:"Subject polygon"`
	Clip    string `index:"2" desc:"Clipping polygon"`
}

type Step struct {
	Calls int    `short:"n" default:"1" desc:"Number of calls, 0 runs until finished"`
	ID    string `index:"0" desc:"Operation ID"`
}

type Result struct {
	Output string `short:"o" desc:"Output file, its extension sets the format (default: points to stdout)"`
	Delete bool   `desc:"Delete the operation afterwards"`
	ID     string `index:"0" desc:"Operation ID"`
}

type List struct{}

type Merge struct {
	Output string `short:"o" desc:"Output file, its extension sets the format (default: points to stdout)"`
	Source string `index:"0" desc:"Source polygon"`
	Dest   string `index:"1" desc:"Destination polygon"`
}

type Area struct {
	Input string `index:"0" desc:"Input file"`
}

type Render struct {
	Output     string  `short:"o" default:"split.svg" desc:"Output image, its extension sets the format"`
	Width      float64 `short:"w" default:"100" desc:"Image width in millimeters"`
	Resolution float64 `short:"r" default:"8" desc:"Resolution of raster images in dots per millimeter"`
	Geohash    bool    `short:"g" desc:"Subject and clip are comma separated geohashes instead of files"`
	Subject    string  `index:"0" desc:"Subject polygon, or operation ID when no clip is given"`
	Clip       string  `index:"1" desc:"Clipping polygon"`
}

func main() {
	var err error
	if cfg, err = loadConfig(viper.New()); err != nil {
		fmt.Fprintln(os.Stderr, "ERROR:", err)
		os.Exit(1)
	}
	logger, err := newLogger(cfg)
	if err != nil {
		fmt.Fprintln(os.Stderr, "ERROR:", err)
		os.Exit(1)
	}
	defer logger.Sync()
	parcel.SetLogger(logger)
	format.GeohashPrecision = cfg.GeohashPrecision

	root := argp.NewCmd(&Split{}, "Exact fixed-point polygon split for land parcels")
	root.AddCmd(&Start{}, "start", "Start a resumable split and store it")
	root.AddCmd(&Step{}, "step", "Continue a stored split")
	root.AddCmd(&Result{}, "result", "Write the outputs of a finished stored split")
	root.AddCmd(&List{}, "list", "List stored splits")
	root.AddCmd(&Merge{}, "merge", "Merge two polygons that share a boundary")
	root.AddCmd(&Area{}, "area", "Print the area of polygons in square meters")
	root.AddCmd(&Render{}, "render", "Render a split as an image")
	root.Parse()
	root.PrintHelp()
}

func budget(b int) int {
	if b < 0 {
		return cfg.Budget
	}
	return b
}

// newOperation reads the subject and clip polygons from files, or decodes them as geohash lists.
func newOperation(subject, clip string, geohashes bool, opts ...parcel.Option) (*parcel.SplitOperation, error) {
	if geohashes {
		cache, err := geohash.NewCache(cfg.CacheSize)
		if err != nil {
			return nil, err
		}
		defer cache.Close()
		opts = append(opts, parcel.WithDecoder(cache))
		return parcel.NewGeohashSplitOperation(strings.Split(subject, ","), strings.Split(clip, ","), opts...)
	}

	s, err := readContour(subject)
	if err != nil {
		return nil, err
	}
	c, err := readContour(clip)
	if err != nil {
		return nil, err
	}
	return parcel.NewSplitOperation(s, c, opts...), nil
}

// readContour reads the first contour of a file.
func readContour(filename string) (parcel.Contour, error) {
	cs, err := format.ReadFile(filename)
	if err != nil {
		return nil, err
	} else if len(cs) == 0 {
		return nil, errors.Errorf("%s: no polygon", filename)
	}
	return cs[0], nil
}

// writeContours writes to a file, or as points to stdout when filename is empty.
func writeContours(filename string, cs []parcel.Contour) error {
	if filename == "" {
		return format.Write(os.Stdout, format.Points, cs)
	}
	return format.WriteFile(filename, cs)
}

// outputs returns the remaining subject polygon followed by the clipped-off polygons.
func outputs(op *parcel.SplitOperation) ([]parcel.Contour, error) {
	remaining, err := op.SubjectOutput()
	if err != nil {
		return nil, err
	}
	results, err := op.ResultPolygons()
	if err != nil {
		return nil, err
	}
	return append([]parcel.Contour{remaining}, results...), nil
}

func (cmd *Split) Run() error {
	if cmd.Subject == "" || cmd.Clip == "" {
		return argp.ShowUsage
	}
	op, err := newOperation(cmd.Subject, cmd.Clip, cmd.Geohash, parcel.WithBudget(budget(cmd.Budget)))
	if err != nil {
		return err
	}
	calls := 0
	for done := false; !done; calls++ {
		if done, err = op.Step(); err != nil {
			return err
		}
	}
	parcel.Logger().Info("split finished", zap.Int("calls", calls), zap.Int("results", op.ResultPolygonsCount()))

	cs, err := outputs(op)
	if err != nil {
		return err
	}
	return writeContours(cmd.Output, cs)
}

func (cmd *Start) Run() error {
	if cmd.ID == "" || cmd.Subject == "" || cmd.Clip == "" {
		return argp.ShowUsage
	}
	op, err := newOperation(cmd.Subject, cmd.Clip, cmd.Geohash, parcel.WithBudget(budget(cmd.Budget)))
	if err != nil {
		return err
	}
	return withStore(func(s *store.Store) error {
		if _, err := s.Load(cmd.ID); err == nil {
			return errors.Errorf("operation %q already exists", cmd.ID)
		} else if !errors.Is(err, store.ErrNotFound) {
			return err
		}
		return s.Save(cmd.ID, op)
	})
}

func (cmd *Step) Run() error {
	if cmd.ID == "" || cmd.Calls < 0 {
		return argp.ShowUsage
	}
	return withStore(func(s *store.Store) error {
		op, err := s.Load(cmd.ID)
		if err != nil {
			return err
		}
		done := op.DoneStage() == parcel.Finished
		for i := 0; !done && (cmd.Calls == 0 || i < cmd.Calls); i++ {
			if done, err = op.Step(); err != nil {
				if errSave := s.Save(cmd.ID, op); errSave != nil {
					parcel.Logger().Error("save failed operation", zap.String("id", cmd.ID), zap.Error(errSave))
				}
				return err
			}
		}
		fmt.Printf("%s: %v\n", cmd.ID, op.DoneStage())
		return s.Save(cmd.ID, op)
	})
}

func (cmd *Result) Run() error {
	if cmd.ID == "" {
		return argp.ShowUsage
	}
	return withStore(func(s *store.Store) error {
		op, err := s.Load(cmd.ID)
		if err != nil {
			return err
		}
		cs, err := outputs(op)
		if err != nil {
			return err
		} else if err := writeContours(cmd.Output, cs); err != nil {
			return err
		}
		if cmd.Delete {
			return s.Delete(cmd.ID)
		}
		return nil
	})
}

func (cmd *List) Run() error {
	return withStore(func(s *store.Store) error {
		infos, err := s.List()
		if err != nil {
			return err
		}
		for _, info := range infos {
			state := info.Stage.String()
			if info.Failed {
				state += " (failed)"
			}
			fmt.Printf("%s\t%s\t%s\n", info.ID, state, info.Updated.Format("2006-01-02 15:04:05"))
		}
		return nil
	})
}

func (cmd *Merge) Run() error {
	if cmd.Source == "" || cmd.Dest == "" {
		return argp.ShowUsage
	}
	source, err := readContour(cmd.Source)
	if err != nil {
		return err
	}
	dest, err := readContour(cmd.Dest)
	if err != nil {
		return err
	}
	merged, err := parcel.Merge(source, dest, parcel.Epsilon)
	if err != nil {
		return err
	} else if err := parcel.CheckMerge(source, dest, merged, parcel.Epsilon); err != nil {
		return err
	}
	return writeContours(cmd.Output, []parcel.Contour{merged})
}

func (cmd *Area) Run() error {
	if cmd.Input == "" {
		return argp.ShowUsage
	}
	cs, err := format.ReadFile(cmd.Input)
	if err != nil {
		return err
	}
	for i, c := range cs {
		utm, err := parcel.AreaUTM(c)
		if err != nil {
			return errors.Wrapf(err, "polygon %d", i)
		}
		sphere, err := parcel.AreaSphere(c)
		if err != nil {
			return errors.Wrapf(err, "polygon %d", i)
		}
		fmt.Printf("%d\tEPSG:%d %.2f m²\tsphere %.2f m²\n", i, parcel.UTMZone(c), utm, sphere)
	}
	return nil
}

func (cmd *Render) Run() error {
	if cmd.Subject == "" {
		return argp.ShowUsage
	}

	var op *parcel.SplitOperation
	var err error
	if cmd.Clip == "" {
		err = withStore(func(s *store.Store) error {
			op, err = s.Load(cmd.Subject)
			return err
		})
	} else if op, err = newOperation(cmd.Subject, cmd.Clip, cmd.Geohash, parcel.WithBudget(0)); err == nil {
		_, err = op.Step()
		for err == nil && op.DoneStage() != parcel.Finished {
			_, err = op.Step()
		}
	}
	if err != nil {
		return err
	}

	opts := render.DefaultOptions
	opts.Width = cmd.Width
	c, err := render.Draw(render.Split(op), opts)
	if err != nil {
		return err
	}
	return render.WriteFile(cmd.Output, c, cmd.Resolution)
}

func withStore(f func(*store.Store) error) error {
	s, err := store.Open(cfg.DB)
	if err != nil {
		return err
	}
	if err := f(s); err != nil {
		s.Close()
		return err
	}
	return s.Close()
}
