// Package image2bit provides a 4-level grayscale image format for e-paper
// panels that render black, dark gray, gray and white.
//
// Each pixel is stored as one gray code per byte:
//
//	Code  Level      RGB
//	0     black      0x000000
//	1     dark gray  0x555555
//	2     gray       0xAAAAAA
//	3     white      0xFFFFFF
//
// The codes are the palette indexes used by the bitmap package, so Image.Pix
// can be handed to bitmap.Assemble as is.
//
// Example usage:
//
//	img := image2bit.NewImage(image.Rect(0, 0, 800, 600))
//	img.SetGray2(10, 20, image2bit.DarkGray)
//	draw.Draw(img, img.Bounds(), image.NewUniform(color.White), image.Point{}, draw.Src)
package image2bit
