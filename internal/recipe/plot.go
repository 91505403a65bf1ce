package recipe

import (
	"bytes"
	"image"
	"image/color"
	"image/draw"
	"image/png"

	chart "github.com/wcharczuk/go-chart/v2"
	"github.com/wcharczuk/go-chart/v2/drawing"
)

const (
	heatmapMaxSide = 640
	heatmapMinCell = 2
)

// heatmapPNG renders a correlation matrix as a blue-white-red raster. Values
// are clipped to [-1, 1].
func heatmapPNG(m [][]float64) ([]byte, error) {
	n := len(m)
	cell := heatmapMaxSide / n
	if cell < heatmapMinCell {
		cell = heatmapMinCell
	}
	if cell > 24 {
		cell = 24
	}
	side := cell * n
	img := image.NewRGBA(image.Rect(0, 0, side, side))
	for i := 0; i < n; i++ {
		for j := 0; j < n; j++ {
			rect := image.Rect(j*cell, i*cell, (j+1)*cell, (i+1)*cell)
			draw.Draw(img, rect, &image.Uniform{C: divergingColor(m[i][j])}, image.Point{}, draw.Src)
		}
	}
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// divergingColor maps -1 to blue, 0 to white, +1 to red.
func divergingColor(v float64) color.RGBA {
	if v > 1 {
		v = 1
	}
	if v < -1 {
		v = -1
	}
	scale := func(t float64) uint8 { return uint8(255 * (1 - t)) }
	if v >= 0 {
		return color.RGBA{R: 255, G: scale(v), B: scale(v), A: 255}
	}
	return color.RGBA{R: scale(-v), G: scale(-v), B: 255, A: 255}
}

// screePNG plots explained variance ratio per component.
func screePNG(explained []float64) ([]byte, error) {
	xs := make([]float64, len(explained))
	for i := range explained {
		xs[i] = float64(i + 1)
	}
	ys := append([]float64(nil), explained...)
	// go-chart needs at least two X values
	if len(xs) == 1 {
		xs = append(xs, xs[0]+1)
		ys = append(ys, ys[0])
	}
	graph := chart.Chart{
		Title: "PCA Scree",
		XAxis: chart.XAxis{Name: "Component"},
		YAxis: chart.YAxis{Name: "Explained variance ratio"},
		Series: []chart.Series{chart.ContinuousSeries{
			XValues: xs,
			YValues: ys,
			Style:   chart.Style{StrokeWidth: 2, DotWidth: 4},
		}},
	}
	var buf bytes.Buffer
	if err := graph.Render(chart.PNG, &buf); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// scatterPNG plots y against x as points only.
func scatterPNG(xs, ys []float64, xLabel, yLabel string) ([]byte, error) {
	px := append([]float64(nil), xs...)
	py := append([]float64(nil), ys...)
	if len(px) == 1 {
		px = append(px, px[0])
		py = append(py, py[0])
	}
	graph := chart.Chart{
		XAxis: chart.XAxis{Name: xLabel},
		YAxis: chart.YAxis{Name: yLabel},
		Series: []chart.Series{chart.ContinuousSeries{
			XValues: px,
			YValues: py,
			Style: chart.Style{
				StrokeWidth: chart.Disabled,
				DotWidth:    3,
				DotColor:    drawing.ColorBlue,
			},
		}},
	}
	var buf bytes.Buffer
	if err := graph.Render(chart.PNG, &buf); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
