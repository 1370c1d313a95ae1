package imagesort

import (
	"image"
	"sync"

	"golang.org/x/image/draw"
)

// DefaultInputSize is the square input resolution of MobileNet-style models.
const DefaultInputSize = 224

// TensorLayout is the axis order of a preprocessed image tensor.
type TensorLayout string

const (
	LayoutNHWC TensorLayout = "nhwc" // [1, H, W, 3], TF/Keras exports
	LayoutNCHW TensorLayout = "nchw" // [1, 3, H, W], PyTorch/ONNX-zoo exports
)

// PreprocessOpts configures Preprocess.
// Zero values mean "use defaults": 224 px, NHWC.
type PreprocessOpts struct {
	Size   int
	Layout TensorLayout
}

func (o *PreprocessOpts) defaults() {
	if o.Size <= 0 {
		o.Size = DefaultInputSize
	}
	if o.Layout != LayoutNCHW {
		o.Layout = LayoutNHWC
	}
}

// Tensor is a dense float32 tensor with a leading batch axis of 1.
type Tensor struct {
	Shape []int64
	Data  []float32
}

// resizePool recycles RGBA canvases between calls. A canvas of the wrong
// size is dropped instead of reused.
var resizePool sync.Pool

func getCanvas(size int) *image.RGBA {
	if v, ok := resizePool.Get().(*image.RGBA); ok && v.Rect.Dx() == size && v.Rect.Dy() == size {
		return v
	}
	return image.NewRGBA(image.Rect(0, 0, size, size))
}

// Preprocess resizes img to the model's square input with bilinear
// interpolation, drops alpha, scales channels from [0,255] to [0,1] and
// adds the batch axis. The working canvas goes back to the pool before
// Preprocess returns; only the returned tensor stays alive.
func Preprocess(img image.Image, opts PreprocessOpts) Tensor {
	opts.defaults()
	size := opts.Size

	canvas := getCanvas(size)
	defer resizePool.Put(canvas)

	draw.BiLinear.Scale(canvas, canvas.Bounds(), img, img.Bounds(), draw.Src, nil)

	plane := size * size
	data := make([]float32, 3*plane)
	pix := canvas.Pix
	for y := range size {
		row := y * canvas.Stride
		for x := range size {
			o := row + x*4
			r := float32(pix[o]) / 255
			g := float32(pix[o+1]) / 255
			b := float32(pix[o+2]) / 255
			i := y*size + x
			if opts.Layout == LayoutNCHW {
				data[i] = r
				data[plane+i] = g
				data[2*plane+i] = b
				continue
			}
			data[3*i] = r
			data[3*i+1] = g
			data[3*i+2] = b
		}
	}

	shape := []int64{1, int64(size), int64(size), 3}
	if opts.Layout == LayoutNCHW {
		shape = []int64{1, 3, int64(size), int64(size)}
	}
	return Tensor{Shape: shape, Data: data}
}
