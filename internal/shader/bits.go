package shader

// State bits packed into Stage.StateBits. Values match the legacy renderer.
const (
	SrcBlendZero             uint32 = 0x00000001
	SrcBlendOne              uint32 = 0x00000002
	SrcBlendDstColor         uint32 = 0x00000003
	SrcBlendOneMinusDstColor uint32 = 0x00000004
	SrcBlendSrcAlpha         uint32 = 0x00000005
	SrcBlendOneMinusSrcAlpha uint32 = 0x00000006
	SrcBlendDstAlpha         uint32 = 0x00000007
	SrcBlendOneMinusDstAlpha uint32 = 0x00000008
	SrcBlendAlphaSaturate    uint32 = 0x00000009
	SrcBlendBits             uint32 = 0x0000000f

	DstBlendZero             uint32 = 0x00000010
	DstBlendOne              uint32 = 0x00000020
	DstBlendSrcColor         uint32 = 0x00000030
	DstBlendOneMinusSrcColor uint32 = 0x00000040
	DstBlendSrcAlpha         uint32 = 0x00000050
	DstBlendOneMinusSrcAlpha uint32 = 0x00000060
	DstBlendDstAlpha         uint32 = 0x00000070
	DstBlendOneMinusDstAlpha uint32 = 0x00000080
	DstBlendBits             uint32 = 0x000000f0

	DepthMaskTrue    uint32 = 0x00000100
	PolyModeLine     uint32 = 0x00001000
	DepthTestDisable uint32 = 0x00010000
	DepthFuncEqual   uint32 = 0x00020000

	AlphaTestGT0  uint32 = 0x10000000
	AlphaTestLT80 uint32 = 0x20000000
	AlphaTestGE80 uint32 = 0x40000000
	AlphaTestBits uint32 = 0x70000000

	StateDefault = DepthMaskTrue
)
