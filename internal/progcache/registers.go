package progcache

import (
	"strconv"

	"q3backend/internal/device"
)

// Vertex program constant registers. Every program sees the same layout.
const (
	VSRegMVPMatrix        = 0
	VSRegProjectionMatrix = 4
	VSRegModelviewMatrix  = 8
	VSRegSkyMatrix        = 12
	VSRegMoveOrigin       = 16
	VSRegTModTurbTime     = 17
	VSRegTCGenVec0        = 18
	VSRegTCGenVec1        = 19
	VSRegInverseRT        = 20
)

// Pixel program constant registers.
const (
	// a 2x2 matrix packed into one float4
	PSRegTModMatrix0 = 0
	PSRegTModMatrix1 = 1
	PSRegTModMatrix2 = 2
	PSRegTModMatrix3 = 3

	PSRegTranslate0    = 4
	PSRegTranslate1    = 5
	PSRegTranslate2    = 6
	PSRegTranslate3    = 7
	PSRegTModTurbAmp   = 8
	PSRegFogDistance   = 9
	PSRegFogDepth      = 10
	PSRegFogEyeT       = 11
	PSRegFogEyeOutside = 12
	PSRegViewOrigin    = 13
	PSRegDLRadius      = 14
	PSRegDLOrigin      = 15
	PSRegDLColour      = 16
	PSRegIdentityLight = 17
	PSRegGamma         = 18
	PSRegBrightness    = 19
)

func reg(name string, n int) device.Define {
	return device.Define{Name: name, Value: "c" + strconv.Itoa(n)}
}

// staticDefines names every register for program sources, in a fixed order.
var staticDefines = []device.Define{
	reg("VSREG_MVPMATRIX", VSRegMVPMatrix),
	reg("VSREG_PROJECTIONMATRIX", VSRegProjectionMatrix),
	reg("VSREG_MODELVIEWMATRIX", VSRegModelviewMatrix),
	reg("VSREG_SKYMATRIX", VSRegSkyMatrix),
	reg("VSREG_MOVEORIGIN", VSRegMoveOrigin),
	reg("VSREG_TMODTURBTIME", VSRegTModTurbTime),
	reg("VSREG_TCGENVEC0", VSRegTCGenVec0),
	reg("VSREG_TCGENVEC1", VSRegTCGenVec1),
	reg("VSREG_INVERSERT", VSRegInverseRT),

	reg("PSREG_TMODMATRIX0", PSRegTModMatrix0),
	reg("PSREG_TMODMATRIX1", PSRegTModMatrix1),
	reg("PSREG_TMODMATRIX2", PSRegTModMatrix2),
	reg("PSREG_TMODMATRIX3", PSRegTModMatrix3),
	reg("PSREG_TRANSLATE0", PSRegTranslate0),
	reg("PSREG_TRANSLATE1", PSRegTranslate1),
	reg("PSREG_TRANSLATE2", PSRegTranslate2),
	reg("PSREG_TRANSLATE3", PSRegTranslate3),
	reg("PSREG_TMODTURBAMP", PSRegTModTurbAmp),
	reg("PSREG_FOGDISTANCE", PSRegFogDistance),
	reg("PSREG_FOGDEPTH", PSRegFogDepth),
	reg("PSREG_FOGEYET", PSRegFogEyeT),
	reg("PSREG_FOGEYEOUTSIDE", PSRegFogEyeOutside),
	reg("PSREG_VIEWORIGIN", PSRegViewOrigin),
	reg("PSREG_DLRADIUS", PSRegDLRadius),
	reg("PSREG_DLORIGIN", PSRegDLOrigin),
	reg("PSREG_DLCOLOUR", PSRegDLColour),
	reg("PSREG_IDENTITYLIGHT", PSRegIdentityLight),
	reg("PSREG_GAMMA", PSRegGamma),
	reg("PSREG_BRIGHTNESS", PSRegBrightness),
}

// StaticDefines returns a copy of the register defines.
func StaticDefines() []device.Define {
	return append([]device.Define(nil), staticDefines...)
}
