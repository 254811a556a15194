package transform

// countryCodes maps ITU calling codes to the valid national number lengths
var countryCodes = map[string][]int{
	"1":  {10},
	"7":  {10},
	"20": {8, 9, 10},
	"27": {9},
	"30": {10},
	"31": {9},
	"32": {8, 9},
	"33": {9},
	"34": {9},
	"36": {8, 9},
	"39": {8, 9, 10, 11},
	"40": {9},
	"41": {9},
	"43": {9, 10, 11, 12, 13},
	"44": {10},
	"45": {8},
	"46": {7, 8, 9},
	"47": {8},
	"48": {9},
	"49": {8, 9, 10, 11},
	"51": {9},
	"52": {10},
	"53": {8},
	"54": {10},
	"55": {10, 11},
	"56": {9},
	"57": {10},
	"58": {10},
	"60": {9, 10},
	"61": {9},
	"62": {9, 10, 11, 12},
	"63": {10},
	"64": {8, 9, 10},
	"65": {8},
	"66": {9},
	"81": {10},
	"82": {9, 10},
	"84": {9, 10},
	"86": {10, 11},
	"90": {10},
	"91": {10},
	"92": {10},
	"93": {9},
	"94": {9},
	"95": {8, 9, 10},
	"98": {10},

	"211": {9},
	"212": {9},
	"213": {9},
	"216": {8},
	"218": {9},
	"220": {7},
	"221": {9},
	"233": {9},
	"234": {10},
	"237": {9},
	"251": {9},
	"254": {9},
	"255": {9},
	"256": {9},
	"260": {9},
	"263": {9},
	"351": {9},
	"352": {8, 9},
	"353": {9},
	"354": {7},
	"355": {9},
	"356": {8},
	"357": {8},
	"358": {9, 10},
	"359": {8, 9},
	"370": {8},
	"371": {8},
	"372": {7, 8},
	"380": {9},
	"381": {8, 9},
	"385": {8, 9},
	"386": {8},
	"387": {8},
	"420": {9},
	"421": {9},
	"852": {8},
	"853": {8},
	"855": {8, 9},
	"880": {10},
	"886": {9},
	"960": {7},
	"961": {7, 8},
	"962": {9},
	"963": {9},
	"964": {10},
	"965": {8},
	"966": {9},
	"971": {9},
	"972": {9},
	"973": {8},
	"974": {8},
	"977": {10},
	"994": {9},
	"995": {9},
	"998": {9},
}

// Minimum national digits implied by a calling code of each length when the
// code is not in the table
var minNationalDigits = map[int]int{1: 10, 2: 8, 3: 7}
