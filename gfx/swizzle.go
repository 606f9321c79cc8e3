package gfx

const (
	// FramebufferWidth and FramebufferHeight are the fixed overlay surface size.
	// The layer is scaled to fit the screen, so the surface stays small.
	FramebufferWidth  = 448
	FramebufferHeight = 720

	BytesPerPixel = 2

	// Block-linear geometry for 16bpp surfaces: a block is 16x16 pixels made of
	// 8x2 sub-blocks, and blocks are stacked 8 high into 128-line block rows.
	blockBytes     = 16 * 16 * 4
	blockRowLines  = 128
	strideAlign    = 64
	tileWidthAlign = 32
)

// PixelOffset returns the byte offset of (x, y) inside a block-linear buffer
// for a surface that is width pixels wide. width must be a multiple of 32.
//
// Callers must keep 0 <= x < width and 0 <= y < height; the result for
// coordinates outside the surface is meaningless.
func PixelOffset(width, x, y int) int {
	block := (y%blockRowLines)/16 + (x/32)*8 + (y/blockRowLines)*(width/2/16*8)
	off := block * blockBytes
	off += ((y%16)/8)*512 +
		((x%32)/16)*256 +
		((y%8)/2)*64 +
		((x%16)/8)*32 +
		(y%2)*16 +
		(x%8)*2
	return off
}

// FramebufferBytes is the allocation a platform must provide for one buffer
// of a width x height block-linear surface.
func FramebufferBytes(width, height int) int {
	stride := alignUp(width*BytesPerPixel, strideAlign)
	return stride * alignUp(height, blockRowLines)
}

// ValidWidth reports whether width can be addressed by PixelOffset.
func ValidWidth(width int) bool {
	return width > 0 && width%tileWidthAlign == 0
}

func alignUp(v, align int) int {
	return (v + align - 1) / align * align
}
