// Command dcgan trains a deep convolutional generative adversarial network
// on grayscale images.
//
// Usage:
//
//	go run ./cmd/dcgan -data ./data/train-images-idx3-ubyte.gz -steps 5000
//	go run ./cmd/dcgan -steps 200 -size 16          # synthetic discs
//
// Every -every steps it writes a grid of generated images and, when
// -checkpoint is set, a checkpoint of both networks. Losses are appended
// to -log as CSV.
package main

import (
	"encoding/hex"
	"flag"
	"fmt"
	"log"
	"math/rand/v2"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"time"

	"github.com/born-ml/dcgan/internal/backend/cpu"
	"github.com/born-ml/dcgan/internal/dataset"
	"github.com/born-ml/dcgan/internal/export"
	"github.com/born-ml/dcgan/internal/gan"
	"github.com/born-ml/dcgan/internal/metrics"
	"github.com/born-ml/dcgan/internal/parallel"
	"github.com/born-ml/dcgan/internal/serialization"
	"github.com/born-ml/dcgan/internal/tensor"
)

const version = "v0.1.0"

// rngKey is the checkpoint metadata entry holding the trainer's random
// state.
const rngKey = "rng"

type options struct {
	data       string
	samples    int
	size       int
	steps      int
	every      int
	out        string
	logPath    string
	checkpoint string
	resume     bool
	device     string
	workers    int
	cfg        gan.Config
}

func parseFlags() options {
	cfg := gan.DefaultConfig()
	var o options
	var lr float64

	flag.StringVar(&o.data, "data", "", "IDX (.gz) or CSV image file; empty uses synthetic discs")
	flag.IntVar(&o.samples, "samples", 0, "max images to load (0 = all)")
	flag.IntVar(&o.size, "size", 28, "side of the synthetic images")
	flag.IntVar(&o.steps, "steps", 1000, "training steps")
	flag.IntVar(&o.every, "every", 100, "steps between previews and checkpoints")
	flag.StringVar(&o.out, "out", "out", "output directory for previews")
	flag.StringVar(&o.logPath, "log", "", "CSV loss log (default <out>/loss.csv)")
	flag.StringVar(&o.checkpoint, "checkpoint", "", "checkpoint file (.born)")
	flag.BoolVar(&o.resume, "resume", false, "load -checkpoint, including the noise and sampling state, before training")
	flag.StringVar(&o.device, "device", "cpu", "execution context: cpu or webgpu")
	flag.IntVar(&o.workers, "workers", runtime.NumCPU(), "CPU kernel workers")
	flag.IntVar(&cfg.Batch, "batch", cfg.Batch, "batch size")
	flag.IntVar(&cfg.Latent, "latent", cfg.Latent, "noise vector length")
	flag.IntVar(&cfg.Features, "features", cfg.Features, "base channel count")
	flag.Float64Var(&lr, "lr", float64(cfg.Generator.Adam.LR), "Adam learning rate for both networks")
	flag.Uint64Var(&cfg.Seed, "seed", cfg.Seed, "random seed")
	showVersion := flag.Bool("version", false, "print version and exit")
	flag.Parse()

	if *showVersion {
		fmt.Printf("dcgan %s\n", version)
		os.Exit(0)
	}

	cfg.Generator.Adam.LR = float32(lr)
	cfg.Discriminator.Adam.LR = float32(lr)
	if o.every <= 0 {
		o.every = max(o.steps, 1)
	}
	if o.logPath == "" {
		o.logPath = filepath.Join(o.out, "loss.csv")
	}
	o.cfg = cfg
	return o
}

func main() {
	log.SetFlags(log.Ltime)
	o := parseFlags()
	if err := run(o); err != nil {
		log.Fatal(err)
	}
}

func run(o options) error {
	par := parallel.DefaultConfig()
	par.NumWorkers = max(o.workers, 1)
	par.Enabled = par.NumWorkers > 1

	ctx, release, err := openDevice(o.device, cpu.Config{Parallel: par})
	if err != nil {
		return err
	}
	defer release()
	log.Printf("device: %s", ctx.Name())

	src, err := loadSource(ctx, o)
	if err != nil {
		return err
	}
	defer src.Release()

	cfg := o.cfg
	d := src.Dims()
	cfg.Height, cfg.Width, cfg.Channels = d.H, d.W, d.C
	log.Printf("dataset: %d images of %dx%dx%d", d.N, d.H, d.W, d.C)

	if err := os.MkdirAll(o.out, 0o755); err != nil {
		return err
	}
	csvSink, err := metrics.CreateCSV(o.logPath)
	if err != nil {
		return err
	}
	defer csvSink.Close()
	summary := metrics.NewSummary()

	tr, err := gan.NewTrainer(ctx, cfg, src, metrics.Tee(csvSink, summary))
	if err != nil {
		return err
	}
	defer tr.Release()

	nets := []serialization.Network{
		{Name: gan.GeneratorName, Net: tr.Generator()},
		{Name: gan.DiscriminatorName, Net: tr.Discriminator()},
	}
	if o.resume && o.checkpoint != "" {
		h, err := serialization.Load(o.checkpoint, nets)
		if err != nil {
			return err
		}
		tr.SetSteps(tr.Generator().Step())
		if v, ok := h.Metadata[rngKey]; ok {
			state, err := hex.DecodeString(v)
			if err != nil {
				return fmt.Errorf("resume: %s: %w", rngKey, err)
			}
			if err := tr.SetRandomState(state); err != nil {
				return err
			}
		}
		log.Printf("resumed %s at step %d (written %s)", o.checkpoint, tr.Steps(), h.CreatedAt.Format(time.RFC3339))
	}

	start := time.Now()
	for tr.Steps() < o.steps {
		l, err := tr.Step()
		if err != nil {
			return fmt.Errorf("step %d: %w", tr.Steps()+1, err)
		}
		if l.Step%o.every != 0 && l.Step != o.steps {
			continue
		}

		g := summary.Stats(gan.GeneratorName, o.every)
		dl := summary.Stats(gan.DiscriminatorName, o.every)
		log.Printf("step %d  D %.4f (±%.4f)  G %.4f (±%.4f)  %.1f steps/s",
			l.Step, dl.Mean, dl.StdDev, g.Mean, g.StdDev, float64(l.Step)/time.Since(start).Seconds())

		if err := writePreview(tr, filepath.Join(o.out, fmt.Sprintf("step%06d.png", l.Step))); err != nil {
			return err
		}
		if o.checkpoint != "" {
			state, err := tr.RandomState()
			if err != nil {
				return err
			}
			meta := map[string]string{"data": o.data, "step": fmt.Sprint(l.Step), rngKey: hex.EncodeToString(state)}
			if err := serialization.Save(o.checkpoint, nets, meta); err != nil {
				return err
			}
		}
	}
	return nil
}

func loadSource(ctx tensor.Context, o options) (*dataset.Source, error) {
	switch {
	case o.data == "":
		n := o.samples
		if n == 0 {
			n = 1024
		}
		return dataset.Synthetic(ctx, n, o.size, o.size, rand.New(rand.NewPCG(o.cfg.Seed, 1)), -1, 1)
	case strings.HasSuffix(o.data, ".csv"):
		return dataset.LoadCSV(ctx, o.data, o.samples, -1, 1)
	default:
		return dataset.LoadIDX(ctx, o.data, o.samples, -1, 1)
	}
}

func writePreview(tr *gan.Trainer, path string) error {
	out, err := tr.Preview()
	if err != nil {
		return err
	}
	n := min(out.Dims().N, 64)
	cols := 1
	for cols*cols < n {
		cols++
	}
	img, err := export.Grid(out, n, cols, 0, -1, 1)
	if err != nil {
		return err
	}
	return export.WritePNG(path, img)
}
