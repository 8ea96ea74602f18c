package renderer

import (
	"image"
	"image/color"
	"testing"
)

func fakeTextureManager() (*TextureManager, *[]uint32) {
	tm := NewTextureManager()
	var next uint32
	freed := []uint32{}
	tm.upload = func(*image.RGBA) uint32 {
		next++
		return next
	}
	tm.free = func(id uint32) { freed = append(freed, id) }
	return tm, &freed
}

func TestTextureManagerSharesByKey(t *testing.T) {
	tm, _ := fakeTextureManager()
	img := image.NewRGBA(image.Rect(0, 0, 2, 2))

	a := tm.Acquire("zombie#image0", img)
	b := tm.Acquire("zombie#image0", img)
	c := tm.Acquire("zombie#image1", img)

	if a != b {
		t.Errorf("same key should share a texture, got %d and %d", a, b)
	}
	if a == c {
		t.Error("different keys should get different textures")
	}

	stats := tm.GetStats()
	if stats.CacheHits != 1 || stats.CacheMisses != 2 || stats.ActiveTextures != 2 {
		t.Errorf("unexpected stats %+v", stats)
	}
}

func TestTextureManagerReleaseFreesOnLastReference(t *testing.T) {
	tm, freed := fakeTextureManager()
	img := image.NewRGBA(image.Rect(0, 0, 1, 1))

	id := tm.Acquire("skin", img)
	tm.Acquire("skin", img)

	tm.ReleaseTexture(id)
	if len(*freed) != 0 {
		t.Fatal("texture freed while still referenced")
	}

	tm.ReleaseTexture(id)
	if len(*freed) != 1 || (*freed)[0] != id {
		t.Fatalf("expected %d to be freed, got %v", id, *freed)
	}

	if again := tm.Acquire("skin", img); again == id {
		t.Error("released key should be uploaded again")
	}
}

func TestTextureManagerClear(t *testing.T) {
	tm, freed := fakeTextureManager()
	img := image.NewRGBA(image.Rect(0, 0, 1, 1))
	tm.Acquire("a", img)
	tm.Acquire("b", img)

	tm.Clear()

	if len(*freed) != 2 {
		t.Errorf("expected 2 textures freed, got %d", len(*freed))
	}
	if tm.GetStats().ActiveTextures != 0 {
		t.Error("no textures should remain active")
	}
}

func TestToRGBAConvertsOffsetImages(t *testing.T) {
	src := image.NewNRGBA(image.Rect(5, 5, 7, 6))
	src.Set(5, 5, color.NRGBA{R: 255, A: 255})

	rgba := toRGBA(src)

	if rgba.Rect.Min != (image.Point{}) || rgba.Rect.Dx() != 2 || rgba.Rect.Dy() != 1 {
		t.Fatalf("unexpected bounds %v", rgba.Rect)
	}
	if r, _, _, _ := rgba.At(0, 0).RGBA(); r != 0xffff {
		t.Errorf("pixel not copied, red=%x", r)
	}
}
