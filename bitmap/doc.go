// Package bitmap assembles the indexed bitmap containers that e-paper panels
// store and render on their own.
//
// A container is a device-independent bitmap with a fixed 70 byte header:
//
//	Offset  Size  Field
//	0       2     "BM"
//	2       4     total file size, little-endian
//	6       4     reserved, zero
//	10      4     pixel data offset (70)
//	14      4     info header size (40)
//	18      4     width
//	22      4     height
//	26      2     planes (1)
//	28      2     bits per pixel (1, 2 or 4)
//	30      16    compression, image size, resolution: zero
//	46      4     palette entries in use
//	50      4     important colors: zero
//	54      16    palette, 4 BGR0 entries
//	70            pixel rows, bottom row first
//
// Every row is padded to a multiple of 4 bytes with 1 bits, which the panel
// treats as white filler.
//
// Pixels are given as gray codes, one per byte. For 1 bpp the codes are
// 0 (black) and 1 (white). For 2 and 4 bpp the codes 0 to 3 select black,
// dark gray, gray and white.
package bitmap
