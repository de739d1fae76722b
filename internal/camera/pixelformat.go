package camera

// PixelFormat is a device pixel format name as the driver reports it.
type PixelFormat string

// Monochrome, Bayer, and colour formats the control layer recognises.
const (
	FormatMono8  PixelFormat = "Mono8"
	FormatMono10 PixelFormat = "Mono10"
	FormatMono12 PixelFormat = "Mono12"
	FormatMono14 PixelFormat = "Mono14"
	FormatMono16 PixelFormat = "Mono16"

	FormatBayerGR8  PixelFormat = "BayerGR8"
	FormatBayerRG8  PixelFormat = "BayerRG8"
	FormatBayerGB8  PixelFormat = "BayerGB8"
	FormatBayerBG8  PixelFormat = "BayerBG8"
	FormatBayerGR10 PixelFormat = "BayerGR10"
	FormatBayerRG10 PixelFormat = "BayerRG10"
	FormatBayerGB10 PixelFormat = "BayerGB10"
	FormatBayerBG10 PixelFormat = "BayerBG10"
	FormatBayerGR12 PixelFormat = "BayerGR12"
	FormatBayerRG12 PixelFormat = "BayerRG12"
	FormatBayerGB12 PixelFormat = "BayerGB12"
	FormatBayerBG12 PixelFormat = "BayerBG12"
	FormatBayerGR16 PixelFormat = "BayerGR16"
	FormatBayerRG16 PixelFormat = "BayerRG16"
	FormatBayerGB16 PixelFormat = "BayerGB16"
	FormatBayerBG16 PixelFormat = "BayerBG16"

	FormatBayerGR12Packed PixelFormat = "BayerGR12Packed"
	FormatBayerRG12Packed PixelFormat = "BayerRG12Packed"
	FormatBayerGB12Packed PixelFormat = "BayerGB12Packed"
	FormatBayerBG12Packed PixelFormat = "BayerBG12Packed"

	FormatRGB8  PixelFormat = "RGB8Packed"
	FormatBGR8  PixelFormat = "BGR8Packed"
	FormatRGBA8 PixelFormat = "RGBA8Packed"
	FormatBGRA8 PixelFormat = "BGRA8Packed"
	FormatRGB12 PixelFormat = "RGB12Packed"
	FormatRGB16 PixelFormat = "RGB16Packed"
)

// Canonical wire encoding names carried on published images.
const (
	EncodingMono8      = "mono8"
	EncodingMono16     = "mono16"
	EncodingBayerGRBG8 = "bayer_grbg8"
	EncodingBayerRGGB8 = "bayer_rggb8"
	EncodingBayerGBRG8 = "bayer_gbrg8"
	EncodingBayerBGGR8 = "bayer_bggr8"
	EncodingRGB8       = "rgb8"
	EncodingBGR8       = "bgr8"
	EncodingRGBA8      = "rgba8"
	EncodingBGRA8      = "bgra8"
	Encoding16SC1      = "16SC1"
	Encoding32SC4      = "32SC4"
	Encoding16UC3      = "16UC3"
)

var formatEncodings = map[PixelFormat]string{
	FormatMono8:  EncodingMono8,
	FormatMono10: EncodingMono16,
	FormatMono12: EncodingMono16,
	FormatMono14: EncodingMono16,
	FormatMono16: EncodingMono16,

	FormatBayerGR8: EncodingBayerGRBG8,
	FormatBayerRG8: EncodingBayerRGGB8,
	FormatBayerGB8: EncodingBayerGBRG8,
	FormatBayerBG8: EncodingBayerBGGR8,

	FormatBayerGR10: Encoding16SC1,
	FormatBayerRG10: Encoding16SC1,
	FormatBayerGB10: Encoding16SC1,
	FormatBayerBG10: Encoding16SC1,
	FormatBayerGR12: Encoding16SC1,
	FormatBayerRG12: Encoding16SC1,
	FormatBayerGB12: Encoding16SC1,
	FormatBayerBG12: Encoding16SC1,
	FormatBayerGR16: Encoding16SC1,
	FormatBayerRG16: Encoding16SC1,
	FormatBayerGB16: Encoding16SC1,
	FormatBayerBG16: Encoding16SC1,

	FormatBayerGR12Packed: Encoding32SC4,
	FormatBayerRG12Packed: Encoding32SC4,
	FormatBayerGB12Packed: Encoding32SC4,
	FormatBayerBG12Packed: Encoding32SC4,

	FormatRGB8:  EncodingRGB8,
	FormatBGR8:  EncodingBGR8,
	FormatRGBA8: EncodingRGBA8,
	FormatBGRA8: EncodingBGRA8,
	FormatRGB12: Encoding16UC3,
	FormatRGB16: Encoding16UC3,
}

// Encoding maps the device format to its wire encoding name. ok is false for
// formats the control layer cannot carry; frames in those formats are
// dropped rather than published mislabelled.
func (f PixelFormat) Encoding() (string, bool) {
	enc, ok := formatEncodings[f]
	return enc, ok
}
