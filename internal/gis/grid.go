package gis

import (
	"bufio"
	"fmt"
	"math"
	"os"
	"strconv"
	"strings"

	"github.com/pkg/errors"

	"river-postproc/internal/csvio"
	"river-postproc/internal/models"
)

// Grid is an ESRI ASCII raster. Values are stored row-major from the top row.
type Grid struct {
	NCols     int
	NRows     int
	XLL       float64 // lower-left corner
	YLL       float64
	CellSize  float64
	NoData    float64
	HasNoData bool
	Values    []float64
}

// At returns the value of cell (row, col)
func (g *Grid) At(row, col int) float64 {
	return g.Values[row*g.NCols+col]
}

// IsNoData reports whether v is the grid's nodata marker
func (g *Grid) IsNoData(v float64) bool {
	return math.IsNaN(v) || (g.HasNoData && v == g.NoData)
}

// SameFrame checks that other covers the same cells as g
func (g *Grid) SameFrame(other *Grid) error {
	if g.NCols != other.NCols || g.NRows != other.NRows {
		return fmt.Errorf("grid is %dx%d, expected %dx%d", other.NCols, other.NRows, g.NCols, g.NRows)
	}
	tol := g.CellSize * 1e-6
	if math.Abs(g.CellSize-other.CellSize) > tol {
		return fmt.Errorf("cell size is %v, expected %v", other.CellSize, g.CellSize)
	}
	if math.Abs(g.XLL-other.XLL) > tol || math.Abs(g.YLL-other.YLL) > tol {
		return fmt.Errorf("origin is (%v, %v), expected (%v, %v)", other.XLL, other.YLL, g.XLL, g.YLL)
	}
	return nil
}

// ReadASCIIGrid loads an ESRI ASCII grid
func ReadASCIIGrid(path string) (*Grid, error) {
	if err := csvio.RequireFile(path); err != nil {
		return nil, err
	}
	f, err := os.Open(path)
	if err != nil {
		return nil, errors.Wrap(err, path)
	}
	defer f.Close()

	g, err := parseASCIIGrid(bufio.NewReader(f))
	if err != nil {
		return nil, models.NewInvalidInputError(fmt.Sprintf("Unable to read grid %s", path), err)
	}
	return g, nil
}

func parseASCIIGrid(r *bufio.Reader) (*Grid, error) {
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 0, 64*1024), 16*1024*1024)
	sc.Split(bufio.ScanWords)

	g := &Grid{}
	header := make(map[string]float64)
	var first string
	for sc.Scan() {
		key := strings.ToLower(sc.Text())
		if _, err := strconv.ParseFloat(key, 64); err == nil {
			first = key
			break
		}
		if !sc.Scan() {
			return nil, fmt.Errorf("header key %s has no value", key)
		}
		v, err := strconv.ParseFloat(sc.Text(), 64)
		if err != nil {
			return nil, errors.Wrapf(err, "header %s", key)
		}
		header[key] = v
	}
	if err := sc.Err(); err != nil {
		return nil, errors.Wrap(err, "header")
	}

	for _, key := range []string{"ncols", "nrows", "cellsize"} {
		if _, ok := header[key]; !ok {
			return nil, fmt.Errorf("header lacks %s", key)
		}
	}
	g.NCols = int(header["ncols"])
	g.NRows = int(header["nrows"])
	g.CellSize = header["cellsize"]
	if g.NCols <= 0 || g.NRows <= 0 || g.CellSize <= 0 {
		return nil, fmt.Errorf("invalid grid dimensions %dx%d cell size %v", g.NCols, g.NRows, g.CellSize)
	}

	switch {
	case hasKey(header, "xllcorner"):
		g.XLL = header["xllcorner"]
	case hasKey(header, "xllcenter"):
		g.XLL = header["xllcenter"] - g.CellSize/2
	default:
		return nil, fmt.Errorf("header lacks xllcorner")
	}
	switch {
	case hasKey(header, "yllcorner"):
		g.YLL = header["yllcorner"]
	case hasKey(header, "yllcenter"):
		g.YLL = header["yllcenter"] - g.CellSize/2
	default:
		return nil, fmt.Errorf("header lacks yllcorner")
	}
	if v, ok := header["nodata_value"]; ok {
		g.NoData = v
		g.HasNoData = true
	}

	n := g.NCols * g.NRows
	g.Values = make([]float64, 0, n)
	if first != "" {
		v, _ := strconv.ParseFloat(first, 64)
		g.Values = append(g.Values, v)
	}
	for len(g.Values) < n && sc.Scan() {
		v, err := strconv.ParseFloat(sc.Text(), 64)
		if err != nil {
			return nil, errors.Wrapf(err, "cell %d", len(g.Values))
		}
		g.Values = append(g.Values, v)
	}
	if err := sc.Err(); err != nil {
		return nil, errors.Wrap(err, "cells")
	}
	if len(g.Values) != n {
		return nil, fmt.Errorf("grid holds %d cells, expected %d", len(g.Values), n)
	}
	return g, nil
}

func hasKey(m map[string]float64, key string) bool {
	_, ok := m[key]
	return ok
}
