package dsccache

import (
	"github.com/leptos-null/tbd/source"
	"github.com/leptos-null/tbd/tbderr"
)

// Image is one resolved dyld shared-cache image, its path and a Source
// that starts at the image's own file offset and runs to the end of its
// containing mapping.
type Image struct {
	Number int // 1-based ordinal in the cache's image table
	Path   string
	Source source.Source
}

// translate resolves a virtual address to a file offset through the
// cache's mapping table, per spec.md §4.7.
func (c *Cache) translate(addr uint64) (int64, bool) {
	for _, m := range c.Mappings {
		if addr >= m.Address && addr < m.Address+m.Size {
			return int64(m.FileOffset + (addr - m.Address)), true
		}
	}
	return 0, false
}

// imageAt materialises the numbered image (0-based index into
// c.Images) as an Image, slicing a Source from the image's translated
// file offset to the end of the mapping that contains it.
func (c *Cache) imageAt(i int) (Image, error) {
	e := c.Images[i]
	off, ok := c.translate(e.Address)
	if !ok {
		return Image{}, tbderr.Newf(tbderr.KindOutOfRange, "image %d address %#x is not within any mapping", i+1, e.Address)
	}
	path, err := readCString(c.src, int64(e.PathFileOffset))
	if err != nil {
		return Image{}, tbderr.Wrapf(tbderr.KindOutOfRange, err, "image %d path", i+1)
	}

	var mapEnd int64
	for _, m := range c.Mappings {
		if e.Address >= m.Address && e.Address < m.Address+m.Size {
			mapEnd = int64(m.FileOffset + m.Size)
			break
		}
	}

	s, err := c.src.Slice(off, mapEnd-off)
	if err != nil {
		return Image{}, tbderr.Wrapf(tbderr.KindOutOfRange, err, "image %d slice", i+1)
	}
	return Image{Number: i + 1, Path: path, Source: s}, nil
}

// Each invokes fn for every image selected by sel (or every image, if
// sel is nil), in image-table order, per spec.md §4.7/§4.8. It reports
// every filter that never matched via sel's Warnings after iteration
// completes.
func (c *Cache) Each(sel *Selection, fn func(Image) error) error {
	for i := range c.Images {
		if sel != nil && !sel.matches(i+1, pathOf(c, i)) {
			continue
		}
		img, err := c.imageAt(i)
		if err != nil {
			return err
		}
		if err := fn(img); err != nil {
			return err
		}
	}
	return nil
}

func pathOf(c *Cache, i int) string {
	p, err := readCString(c.src, int64(c.Images[i].PathFileOffset))
	if err != nil {
		return ""
	}
	return p
}
