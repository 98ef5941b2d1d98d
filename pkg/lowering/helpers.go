package lowering

import "github.com/raymyers/loopcc/pkg/isel"

// floorDivHelper rounds toward negative infinity for a positive divisor
var floorDivHelper = isel.Helper{
	Name: "lcc_floor_div",
	Code: `static int_fast32_t lcc_floor_div(int_fast32_t num, int_fast32_t quot) {
  int_fast32_t off = (num >= 0) ? 0 : quot - 1;
  return (num - off) / quot;
}`,
}

// clampHelper saturates a 32-bit value into the 8-bit range
var clampHelper = isel.Helper{
	Name: "lcc_clamp_32to8",
	Code: `static int8_t lcc_clamp_32to8(int32_t x) {
  return (x < -128) ? -128 : ((x > 127) ? 127 : x);
}`,
}
