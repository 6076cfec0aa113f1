package main

import (
	"bufio"
	"compress/gzip"
	"encoding/binary"
	"image"
	"image/color"
	"image/png"
	"io"
	"math/rand"
	"os"

	"github.com/pkg/errors"
	"gorgonia.org/tensor"

	"gondigits/neuralnet"
)

const (
	ImageSide  = 28
	ImageSize  = ImageSide * ImageSide
	imageMagic = 2051
	labelMagic = 2049
)

// Dataset keeps raw [0,255] images as an (n, 784) tensor.
type Dataset struct {
	images *tensor.Dense
	labels []int
	order  []int
}

func newDataset(pixels []float64, labels []int) *Dataset {
	n := len(labels)
	order := make([]int, n)
	for i := range order {
		order[i] = i
	}
	return &Dataset{
		images: tensor.New(tensor.Of(tensor.Float64), tensor.WithShape(n, ImageSize), tensor.WithBacking(pixels)),
		labels: labels,
		order:  order,
	}
}

func (d *Dataset) Len() int {
	return len(d.labels)
}

// Sample returns the i-th image in the current order.
func (d *Dataset) Sample(i int) ([]float64, int, error) {
	row := d.order[i]
	view, err := d.images.Slice(tensor.S(row))
	if err != nil {
		return nil, 0, errors.Wrapf(err, "sample %d", row)
	}
	data, ok := view.Data().([]float64)
	if !ok || len(data) != ImageSize {
		return nil, 0, errors.Errorf("sample %d: bad row", row)
	}
	pixels := make([]float64, ImageSize)
	copy(pixels, data)
	return pixels, d.labels[row], nil
}

func (d *Dataset) Shuffle(rng *rand.Rand) {
	rng.Shuffle(len(d.order), func(i, j int) {
		d.order[i], d.order[j] = d.order[j], d.order[i]
	})
}

// openIDX opens an IDX file, gzipped or not, and checks its magic number.
func openIDX(path string, magic uint32) (io.ReadCloser, *bufio.Reader, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, nil, err
	}
	r := bufio.NewReader(file)
	head, err := r.Peek(2)
	if err != nil {
		file.Close()
		return nil, nil, errors.Wrapf(err, "reading %s", path)
	}
	if head[0] == 0x1f && head[1] == 0x8b {
		gz, err := gzip.NewReader(r)
		if err != nil {
			file.Close()
			return nil, nil, errors.Wrapf(err, "reading %s", path)
		}
		r = bufio.NewReader(gz)
	}
	var got uint32
	if err := binary.Read(r, binary.BigEndian, &got); err != nil {
		file.Close()
		return nil, nil, errors.Wrapf(err, "reading %s", path)
	}
	if got != magic {
		file.Close()
		return nil, nil, errors.Errorf("%s: magic %d, want %d", path, got, magic)
	}
	return file, r, nil
}

func readLabels(path string, limit int) ([]int, error) {
	file, r, err := openIDX(path, labelMagic)
	if err != nil {
		return nil, err
	}
	defer file.Close()

	var count uint32
	if err := binary.Read(r, binary.BigEndian, &count); err != nil {
		return nil, errors.Wrapf(err, "reading %s", path)
	}
	n := int(count)
	if limit > 0 && n > limit {
		n = limit
	}
	// the header count is not trusted for allocation
	labels := make([]int, 0, capHint(n))
	for i := 0; i < n; i++ {
		b, err := r.ReadByte()
		if err != nil {
			return nil, errors.Wrapf(noEOF(err), "%s: label %d of %d", path, i, n)
		}
		if int(b) >= neuralnet.OutputSize {
			return nil, errors.Errorf("%s: label %d at %d", path, b, i)
		}
		labels = append(labels, int(b))
	}
	return labels, nil
}

func readImages(path string, limit int) ([]float64, int, error) {
	file, r, err := openIDX(path, imageMagic)
	if err != nil {
		return nil, 0, err
	}
	defer file.Close()

	var header [3]uint32
	if err := binary.Read(r, binary.BigEndian, &header); err != nil {
		return nil, 0, errors.Wrapf(err, "reading %s", path)
	}
	count, rows, cols := int(header[0]), int(header[1]), int(header[2])
	if rows != ImageSide || cols != ImageSide {
		return nil, 0, errors.Errorf("%s: images are %dx%d, want %dx%d", path, rows, cols, ImageSide, ImageSide)
	}
	if limit > 0 && count > limit {
		count = limit
	}
	pixels := make([]float64, 0, capHint(count)*ImageSize)
	buf := make([]byte, ImageSize)
	for i := 0; i < count; i++ {
		if _, err := io.ReadFull(r, buf); err != nil {
			return nil, 0, errors.Wrapf(noEOF(err), "%s: image %d of %d", path, i, count)
		}
		for _, b := range buf {
			pixels = append(pixels, float64(b))
		}
	}
	return pixels, count, nil
}

// maxPrealloc bounds what a header count alone can make us allocate.
const maxPrealloc = 1 << 12

func capHint(n int) int {
	if n > maxPrealloc {
		return maxPrealloc
	}
	return n
}

func noEOF(err error) error {
	if err == io.EOF {
		return io.ErrUnexpectedEOF
	}
	return err
}

// loadIDX reads an MNIST image/label file pair. limit <= 0 reads everything.
func loadIDX(imagesPath, labelsPath string, limit int) (*Dataset, error) {
	pixels, count, err := readImages(imagesPath, limit)
	if err != nil {
		return nil, err
	}
	labels, err := readLabels(labelsPath, limit)
	if err != nil {
		return nil, err
	}
	if count != len(labels) {
		return nil, errors.Errorf("%d images but %d labels", count, len(labels))
	}
	if count == 0 {
		return nil, errors.Errorf("%s: no images", imagesPath)
	}
	return newDataset(pixels, labels), nil
}

// loadPNG turns a drawing into 784 row-major brightness samples in [0,255],
// averaging each 28x28 cell over the source pixels it covers.
func loadPNG(path string, invert bool) ([]float64, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer file.Close()

	img, err := png.Decode(file)
	if err != nil {
		return nil, errors.Wrapf(err, "decoding %s", path)
	}
	if img.Bounds().Empty() {
		return nil, errors.Errorf("%s: empty image", path)
	}
	return downsample(img, invert), nil
}

func downsample(img image.Image, invert bool) []float64 {
	b := img.Bounds()
	w, h := b.Dx(), b.Dy()
	pixels := make([]float64, ImageSize)
	for y := 0; y < ImageSide; y++ {
		y0, y1 := cell(y, h)
		for x := 0; x < ImageSide; x++ {
			x0, x1 := cell(x, w)
			var sum float64
			for sy := y0; sy < y1; sy++ {
				for sx := x0; sx < x1; sx++ {
					g := color.GrayModel.Convert(img.At(b.Min.X+sx, b.Min.Y+sy)).(color.Gray)
					sum += float64(g.Y)
				}
			}
			v := sum / float64((y1-y0)*(x1-x0))
			if invert {
				v = neuralnet.MaxBrightness - v
			}
			pixels[y*ImageSide+x] = v
		}
	}
	return pixels
}

// cell returns the source range [from, to) covered by output cell i of a side
// of length n. Sides shorter than 28 repeat source pixels.
func cell(i, n int) (int, int) {
	from := i * n / ImageSide
	to := (i + 1) * n / ImageSide
	if to <= from {
		to = from + 1
	}
	return from, to
}

// savePNG writes 784 samples back out as a 28x28 grayscale image.
func savePNG(pixels []float64, path string) error {
	img := image.NewGray(image.Rect(0, 0, ImageSide, ImageSide))
	for y := 0; y < ImageSide; y++ {
		for x := 0; x < ImageSide; x++ {
			img.SetGray(x, y, color.Gray{Y: uint8(pixels[y*ImageSide+x] + 0.5)})
		}
	}
	file, err := os.Create(path)
	if err != nil {
		return err
	}
	defer file.Close()
	return png.Encode(file, img)
}
