package scene

// Sort key layout, low bit first: dlight flag, 5 bits fog, 10 bits entity,
// 14 bits shader index.
const (
	QSortShaderNumShift = 17
	QSortEntityNumShift = 7
	QSortFogNumShift    = 2

	MaxShaders     = 1 << 14
	MaxEntities    = 1 << 10
	MaxFogs        = 1 << 5
	EntityNumWorld = MaxEntities - 1
)

// DrawSurf pairs a surface with its packed sort key.
type DrawSurf struct {
	Sort    uint32
	Surface Surface
}

// MakeSort packs a sort key.
func MakeSort(shaderIndex, entityNum, fogNum int, dlighted bool) uint32 {
	s := uint32(shaderIndex&(MaxShaders-1))<<QSortShaderNumShift |
		uint32(entityNum&(MaxEntities-1))<<QSortEntityNumShift |
		uint32(fogNum&(MaxFogs-1))<<QSortFogNumShift
	if dlighted {
		s |= 1
	}
	return s
}

// DecomposeSort unpacks a sort key built by MakeSort.
func DecomposeSort(sort uint32) (shaderIndex, entityNum, fogNum int, dlighted bool) {
	fogNum = int(sort>>QSortFogNumShift) & (MaxFogs - 1)
	shaderIndex = int(sort>>QSortShaderNumShift) & (MaxShaders - 1)
	entityNum = int(sort>>QSortEntityNumShift) & (MaxEntities - 1)
	dlighted = sort&1 != 0
	return
}
