package filters

import (
	"fmt"

	"github.com/wudi/pdfstruct/ir/raw"
)

func paramInt(params raw.Dictionary, key string, def int) int {
	if params == nil {
		return def
	}
	o, ok := params.Get(raw.NameObj{Val: key})
	if !ok {
		return def
	}
	if n, ok := o.(raw.Number); ok {
		return int(n.Int())
	}
	return def
}

// applyPredictor undoes the /Predictor transform of Flate and LZW output.
func applyPredictor(data []byte, params raw.Dictionary) ([]byte, error) {
	predictor := paramInt(params, "Predictor", 1)
	if predictor <= 1 {
		return data, nil
	}
	colors := paramInt(params, "Colors", 1)
	bpc := paramInt(params, "BitsPerComponent", 8)
	columns := paramInt(params, "Columns", 1)
	if colors < 1 || bpc < 1 || columns < 1 || colors > 32 || bpc > 16 {
		return nil, fmt.Errorf("invalid predictor parameters colors=%d bpc=%d columns=%d", colors, bpc, columns)
	}
	switch {
	case predictor == 2:
		return tiffPredict(data, colors, bpc, columns)
	case predictor >= 10 && predictor <= 15:
		return pngPredict(data, colors, bpc, columns)
	}
	return nil, fmt.Errorf("unsupported predictor %d", predictor)
}

func pngPredict(data []byte, colors, bpc, columns int) ([]byte, error) {
	rowLen := (colors*bpc*columns + 7) / 8
	bpp := (colors*bpc + 7) / 8
	if bpp < 1 {
		bpp = 1
	}
	out := make([]byte, 0, len(data)/(rowLen+1)*rowLen)
	prev := make([]byte, rowLen)
	for off := 0; off < len(data); off += rowLen + 1 {
		end := min(off+rowLen+1, len(data))
		if end-off < 2 {
			break
		}
		filter := data[off]
		row := make([]byte, rowLen)
		copy(row, data[off+1:end])
		for i := range row {
			var left, up, upLeft byte
			if i >= bpp {
				left = row[i-bpp]
				upLeft = prev[i-bpp]
			}
			up = prev[i]
			switch filter {
			case 0:
			case 1:
				row[i] += left
			case 2:
				row[i] += up
			case 3:
				row[i] += byte((int(left) + int(up)) / 2)
			case 4:
				row[i] += paeth(left, up, upLeft)
			default:
				return nil, fmt.Errorf("invalid PNG filter type %d", filter)
			}
		}
		out = append(out, row[:end-off-1]...)
		prev = row
	}
	return out, nil
}

func paeth(a, b, c byte) byte {
	p := int(a) + int(b) - int(c)
	pa, pb, pc := abs(p-int(a)), abs(p-int(b)), abs(p-int(c))
	switch {
	case pa <= pb && pa <= pc:
		return a
	case pb <= pc:
		return b
	default:
		return c
	}
}

func abs(v int) int {
	if v < 0 {
		return -v
	}
	return v
}

func tiffPredict(data []byte, colors, bpc, columns int) ([]byte, error) {
	switch bpc {
	case 8:
		rowLen := colors * columns
		out := append([]byte(nil), data...)
		for r := 0; r+rowLen <= len(out); r += rowLen {
			for i := colors; i < rowLen; i++ {
				out[r+i] += out[r+i-colors]
			}
		}
		return out, nil
	case 16:
		rowLen := colors * columns * 2
		out := append([]byte(nil), data...)
		for r := 0; r+rowLen <= len(out); r += rowLen {
			for i := colors * 2; i < rowLen; i += 2 {
				cur := uint16(out[r+i])<<8 | uint16(out[r+i+1])
				left := uint16(out[r+i-colors*2])<<8 | uint16(out[r+i-colors*2+1])
				cur += left
				out[r+i], out[r+i+1] = byte(cur>>8), byte(cur)
			}
		}
		return out, nil
	}
	return nil, fmt.Errorf("unsupported TIFF predictor depth %d", bpc)
}
