package io

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"time"

	"github.com/rwcarlsen/goexif/exif"
)

// Order selects how layer files are arranged before stacking
type Order string

const (
	OrderNone Order = "none" // keep the given order
	OrderName Order = "name" // sort by file name
	OrderExif Order = "exif" // sort by capture time
)

func ParseOrder(s string) (Order, error) {
	switch o := Order(s); o {
	case OrderNone, OrderName, OrderExif:
		return o, nil
	case "":
		return OrderNone, nil
	}
	return "", fmt.Errorf("unknown layer order %q (want none, name or exif)", s)
}

// OrderFiles returns a reordered copy of paths. With OrderExif, files with a
// capture time come first, oldest first; the rest follow in name order.
func OrderFiles(paths []string, order Order) ([]string, error) {
	out := append([]string(nil), paths...)

	switch order {
	case OrderNone:
	case OrderName:
		sort.SliceStable(out, func(i, j int) bool { return filepath.Base(out[i]) < filepath.Base(out[j]) })
	case OrderExif:
		type dated struct {
			path string
			t    time.Time
			ok   bool
		}
		items := make([]dated, len(out))
		for i, p := range out {
			t, ok := CaptureTime(p)
			items[i] = dated{path: p, t: t, ok: ok}
		}
		sort.SliceStable(items, func(i, j int) bool {
			a, b := items[i], items[j]
			switch {
			case a.ok && b.ok:
				return a.t.Before(b.t)
			case a.ok != b.ok:
				return a.ok
			}
			return filepath.Base(a.path) < filepath.Base(b.path)
		})
		for i, it := range items {
			out[i] = it.path
		}
	default:
		return nil, fmt.Errorf("unknown layer order %q", order)
	}
	return out, nil
}

// CaptureTime reads DateTimeOriginal (falling back to DateTime) from the EXIF
// block of path.
func CaptureTime(path string) (time.Time, bool) {
	reader, err := os.Open(path)
	if err != nil {
		return time.Time{}, false
	}
	defer reader.Close()

	ex, err := exif.Decode(reader)
	if err != nil {
		return time.Time{}, false
	}
	t, err := ex.DateTime()
	if err != nil {
		return time.Time{}, false
	}
	return t, true
}
