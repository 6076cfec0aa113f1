package main

import (
	"flag"
	"fmt"
	"log"
	"math/rand"
	"os"
	"path/filepath"
	"strings"

	"github.com/pkg/errors"

	"gondigits/neuralnet"
)

type config struct {
	trainImages string
	trainLabels string
	testImages  string
	testLabels  string
	limit       int
	epochs      int
	seed        int64
	eta         float64
	alpha       float64
	initMin     float64
	initMax     float64
	label       int
	repeat      int
	invert      bool
	logEvery    int
	dump        string
	drawings    []string
}

func parseFlags(args []string) (*config, error) {
	fs := flag.NewFlagSet("gondigits", flag.ContinueOnError)
	cfg := &config{}
	fs.StringVar(&cfg.trainImages, "train-images", "", "MNIST training images (idx3, optionally gzipped)")
	fs.StringVar(&cfg.trainLabels, "train-labels", "", "MNIST training labels (idx1, optionally gzipped)")
	fs.StringVar(&cfg.testImages, "test-images", "", "MNIST test images")
	fs.StringVar(&cfg.testLabels, "test-labels", "", "MNIST test labels")
	fs.IntVar(&cfg.limit, "limit", 0, "max samples to read from each IDX file (0 = all)")
	fs.IntVar(&cfg.epochs, "epochs", 1, "passes over the training set")
	fs.Int64Var(&cfg.seed, "seed", 1, "seed for weight init and shuffling")
	fs.Float64Var(&cfg.eta, "eta", neuralnet.DefaultLearningRate, "learning rate")
	fs.Float64Var(&cfg.alpha, "alpha", neuralnet.DefaultMomentum, "momentum")
	fs.Float64Var(&cfg.initMin, "init-min", -0.05, "lower bound of initial weights")
	fs.Float64Var(&cfg.initMax, "init-max", 0.05, "upper bound of initial weights")
	fs.IntVar(&cfg.label, "label", -1, "train the PNG arguments as this digit before predicting")
	fs.IntVar(&cfg.repeat, "repeat", 1, "training passes per labelled PNG")
	fs.BoolVar(&cfg.invert, "invert", false, "PNGs are dark strokes on a light background")
	fs.IntVar(&cfg.logEvery, "log-every", 10000, "log the running error every N samples")
	fs.StringVar(&cfg.dump, "dump", "", "write the downsampled 28x28 PNG arguments into this directory")
	if err := fs.Parse(args); err != nil {
		return nil, err
	}
	cfg.drawings = fs.Args()

	if (cfg.trainImages == "") != (cfg.trainLabels == "") {
		return nil, errors.New("-train-images and -train-labels go together")
	}
	if (cfg.testImages == "") != (cfg.testLabels == "") {
		return nil, errors.New("-test-images and -test-labels go together")
	}
	if cfg.label >= neuralnet.OutputSize {
		return nil, errors.Errorf("-label %d not a digit", cfg.label)
	}
	if cfg.label >= 0 && len(cfg.drawings) == 0 {
		return nil, errors.New("-label needs PNG arguments")
	}
	if cfg.repeat < 1 {
		return nil, errors.Errorf("-repeat %d must be at least 1", cfg.repeat)
	}
	return cfg, nil
}

func (cfg *config) params() neuralnet.Params {
	return neuralnet.Params{
		Optimizer: neuralnet.Momentum{LearningRate: cfg.eta, Alpha: cfg.alpha},
		InitMin:   cfg.initMin,
		InitMax:   cfg.initMax,
	}
}

func trainEpochs(nn *neuralnet.NeuralNetwork, ds *Dataset, cfg *config, rng *rand.Rand) error {
	for e := 0; e < cfg.epochs; e++ {
		ds.Shuffle(rng)
		for i := 0; i < ds.Len(); i++ {
			pixels, label, err := ds.Sample(i)
			if err != nil {
				return err
			}
			if err := nn.Train(pixels, label); err != nil {
				return errors.Wrapf(err, "sample %d", i)
			}
			if cfg.logEvery > 0 && (i+1)%cfg.logEvery == 0 {
				log.Printf("epoch %d: %d/%d samples, recent error %.4f", e, i+1, ds.Len(), nn.RecentAverageError())
			}
		}
		log.Printf("epoch %d done, recent error %.4f", e, nn.RecentAverageError())
	}
	return nil
}

// accuracy returns the fraction of ds predicted correctly.
func accuracy(nn *neuralnet.NeuralNetwork, ds *Dataset) (float64, error) {
	if ds.Len() == 0 {
		return 0, nil
	}
	correct := 0
	for i := 0; i < ds.Len(); i++ {
		pixels, label, err := ds.Sample(i)
		if err != nil {
			return 0, err
		}
		got, err := nn.Predict(pixels)
		if err != nil {
			return 0, err
		}
		if got == label {
			correct++
		}
	}
	return float64(correct) / float64(ds.Len()), nil
}

func run(cfg *config) error {
	rng := rand.New(rand.NewSource(cfg.seed))
	nn, err := neuralnet.New(rng, cfg.params())
	if err != nil {
		return err
	}

	if cfg.trainImages != "" {
		ds, err := loadIDX(cfg.trainImages, cfg.trainLabels, cfg.limit)
		if err != nil {
			return errors.Wrap(err, "loading training set")
		}
		log.Printf("training on %d samples for %d epochs", ds.Len(), cfg.epochs)
		if err := trainEpochs(nn, ds, cfg, rng); err != nil {
			return err
		}
	}

	if cfg.testImages != "" {
		ds, err := loadIDX(cfg.testImages, cfg.testLabels, cfg.limit)
		if err != nil {
			return errors.Wrap(err, "loading test set")
		}
		acc, err := accuracy(nn, ds)
		if err != nil {
			return err
		}
		log.Printf("test accuracy %.2f%% on %d samples", acc*100, ds.Len())
	}

	drawings := make([][]float64, len(cfg.drawings))
	for i, path := range cfg.drawings {
		pixels, err := loadPNG(path, cfg.invert)
		if err != nil {
			return err
		}
		drawings[i] = pixels
		if cfg.dump != "" {
			name := strings.TrimSuffix(filepath.Base(path), filepath.Ext(path)) + "_28x28.png"
			if err := savePNG(pixels, filepath.Join(cfg.dump, name)); err != nil {
				return err
			}
		}
	}

	if cfg.label >= 0 {
		for r := 0; r < cfg.repeat; r++ {
			for i, pixels := range drawings {
				if err := nn.Train(pixels, cfg.label); err != nil {
					return errors.Wrapf(err, "training %s", cfg.drawings[i])
				}
			}
		}
		log.Printf("trained %d drawings as %d, recent error %.4f", len(drawings), cfg.label, nn.RecentAverageError())
	}

	for i, pixels := range drawings {
		digit, err := nn.Predict(pixels)
		if err != nil {
			return errors.Wrapf(err, "predicting %s", cfg.drawings[i])
		}
		fmt.Printf("%s: %d\n", cfg.drawings[i], digit)
	}
	return nil
}

func main() {
	log.SetFlags(log.LstdFlags)
	log.SetPrefix("gondigits: ")

	cfg, err := parseFlags(os.Args[1:])
	if err != nil {
		if err == flag.ErrHelp {
			return
		}
		log.Fatal(err)
	}
	if err := run(cfg); err != nil {
		log.Fatal(err)
	}
}
