// Package gis holds the shapefile and raster plumbing used by the utilities.
package gis

import (
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/jonas-p/go-shp"
	"github.com/pkg/errors"

	"river-postproc/internal/csvio"
	"river-postproc/internal/models"
)

// Sidecar extensions copied next to a written shapefile
var sidecarExtensions = []string{".prj", ".cpg"}

// FieldIndex returns the position of the named attribute, or -1
func FieldIndex(fields []shp.Field, name string) int {
	for i, f := range fields {
		if f.String() == name {
			return i
		}
	}
	return -1
}

func attribute(r *shp.Reader, row, field int) string {
	return strings.TrimSpace(strings.Trim(r.ReadAttribute(row, field), "\x00"))
}

func openShapefile(path string) (*shp.Reader, error) {
	if err := csvio.RequireFile(path); err != nil {
		return nil, err
	}
	r, err := shp.Open(path)
	if err != nil {
		return nil, models.NewInvalidInputError(fmt.Sprintf("Unable to read %s", path), err)
	}
	return r, nil
}

// ReadIDSet returns the integer values of idField for every feature, after
// checking that all required attributes exist.
func ReadIDSet(path, idField string, required ...string) (map[int64]struct{}, error) {
	r, err := openShapefile(path)
	if err != nil {
		return nil, err
	}
	defer r.Close()

	fields := r.Fields()
	names := append(append([]string(nil), required...), idField)
	for _, name := range names {
		if FieldIndex(fields, name) < 0 {
			return nil, models.NewMissingFieldError(path, name)
		}
	}
	idIdx := FieldIndex(fields, idField)

	ids := make(map[int64]struct{})
	for r.Next() {
		row, _ := r.Shape()
		raw := attribute(r, row, idIdx)
		id, err := csvio.ParseID(raw)
		if err != nil {
			return nil, models.NewInvalidInputError(
				fmt.Sprintf("%s feature %d has an invalid %s value %q", path, row, idField, raw), err)
		}
		ids[id] = struct{}{}
	}
	if err := r.Err(); err != nil {
		return nil, models.NewInvalidInputError(fmt.Sprintf("Unable to read %s", path), err)
	}
	return ids, nil
}

// TrimResult counts the features seen and kept by a trim
type TrimResult struct {
	Total int
	Kept  int
}

// TrimByAttribute copies the features of in whose numeric attribute field is
// at least threshold into out. Geometry type, attribute schema and the .prj
// and .cpg sidecars are carried over. Every feature is checked before out is
// created, and a failed write removes what was written.
func TrimByAttribute(in, field string, threshold float64, out string) (TrimResult, error) {
	var res TrimResult

	r, err := openShapefile(in)
	if err != nil {
		return res, err
	}
	defer r.Close()

	fields := r.Fields()
	idx := FieldIndex(fields, field)
	if idx < 0 {
		return res, models.NewMissingFieldError(in, field)
	}

	type feature struct {
		shape shp.Shape
		attrs []string
	}
	var kept []feature
	for r.Next() {
		row, shape := r.Shape()
		res.Total++

		raw := attribute(r, row, idx)
		v, err := strconv.ParseFloat(raw, 64)
		if err != nil {
			return res, models.NewInvalidInputError(
				fmt.Sprintf("%s feature %d has a non-numeric %s value %q", in, row, field, raw), err)
		}
		if v < threshold {
			continue
		}

		attrs := make([]string, len(fields))
		for j := range fields {
			attrs[j] = r.ReadAttribute(row, j)
		}
		kept = append(kept, feature{shape: shape, attrs: attrs})
	}
	if err := r.Err(); err != nil {
		return res, models.NewInvalidInputError(fmt.Sprintf("Unable to read %s", in), err)
	}

	err = writeShapefile(out, r.GeometryType, fields, func(w *shp.Writer) error {
		for _, f := range kept {
			row := int(w.Write(f.shape))
			for j, a := range f.attrs {
				if err := w.WriteAttribute(row, j, a); err != nil {
					return errors.Wrapf(err, "%s feature %d field %s", out, row, fields[j].String())
				}
			}
		}
		return nil
	})
	if err != nil {
		return res, err
	}
	res.Kept = len(kept)

	if err := CopySidecars(in, out); err != nil {
		RemoveShapefile(out)
		return res, err
	}
	return res, nil
}

// writeShapefile creates path with the given schema and hands the writer to
// fill. When fill fails the partial files are removed.
func writeShapefile(path string, geometry shp.ShapeType, fields []shp.Field, fill func(*shp.Writer) error) error {
	w, err := shp.Create(path, geometry)
	if err != nil {
		RemoveShapefile(path)
		return errors.Wrap(err, "Unable to create "+path)
	}
	if err := w.SetFields(fields); err != nil {
		w.Close()
		RemoveShapefile(path)
		return errors.Wrap(err, path)
	}
	if err := fill(w); err != nil {
		w.Close()
		RemoveShapefile(path)
		return err
	}
	w.Close()
	return nil
}

// RemoveShapefile deletes path and its companion files, ignoring the ones
// that do not exist.
func RemoveShapefile(path string) {
	exts := append([]string{".shp", ".shx", ".dbf"}, sidecarExtensions...)
	for _, ext := range exts {
		os.Remove(swapExt(path, ext))
	}
}

// CopySidecars copies the projection and code page files of src next to dst
// when they exist.
func CopySidecars(src, dst string) error {
	for _, ext := range sidecarExtensions {
		from := swapExt(src, ext)
		if !csvio.FileExists(from) {
			continue
		}
		if err := copyFile(from, swapExt(dst, ext)); err != nil {
			return err
		}
	}
	return nil
}

func swapExt(path, ext string) string {
	if i := strings.LastIndex(path, "."); i > strings.LastIndex(path, string(os.PathSeparator)) {
		return path[:i] + ext
	}
	return path + ext
}

func copyFile(from, to string) error {
	src, err := os.Open(from)
	if err != nil {
		return errors.Wrap(err, from)
	}
	defer src.Close()

	dst, err := os.Create(to)
	if err != nil {
		return errors.Wrap(err, "Unable to create "+to)
	}
	if _, err := io.Copy(dst, src); err != nil {
		dst.Close()
		return errors.Wrap(err, to)
	}
	return errors.Wrap(dst.Close(), to)
}

// PolygonFeature is one output polygon and its reach identifier
type PolygonFeature struct {
	ID    int64
	Rings [][]shp.Point
}

// WritePolygons writes features to a polygon shapefile with a single rivid
// attribute. Nothing is left at path when a write fails.
func WritePolygons(path string, features []PolygonFeature) error {
	fields := []shp.Field{shp.NumberField(models.AttrRivID, 10)}
	return writeShapefile(path, shp.POLYGON, fields, func(w *shp.Writer) error {
		for _, f := range features {
			polygon := shp.Polygon(*shp.NewPolyLine(f.Rings))
			row := int(w.Write(&polygon))
			if err := w.WriteAttribute(row, 0, int(f.ID)); err != nil {
				return errors.Wrapf(err, "%s feature %d", path, f.ID)
			}
		}
		return nil
	})
}
