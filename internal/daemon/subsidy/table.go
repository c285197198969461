package subsidy

// monthlyTable holds the block reward in sompi for each month since the
// schedule cutoff. Rewards halve every twelve months.
var monthlyTable = [Months]uint64{
	4000000000, 3775497250, 3563594872, 3363585661, 3174802103, 2996614153,
	2828427124, 2669679708, 2519842099, 2378414230, 2244924096, 2118926188,
	1999999999, 1887748625, 1781797436, 1681792830, 1587401051, 1498307076,
	1414213562, 1334839854, 1259921049, 1189207115, 1122462048, 1059463094,
	999999999, 943874312, 890898718, 840896415, 793700525, 749153538,
	707106781, 667419927, 629960524, 594603557, 561231024, 529731547,
	499999999, 471937156, 445449359, 420448207, 396850262, 374576769,
	353553390, 333709963, 314980262, 297301778, 280615512, 264865773,
	249999999, 235968578, 222724679, 210224103, 198425131, 187288384,
	176776695, 166854981, 157490131, 148650889, 140307756, 132432886,
	124999999, 117984289, 111362339, 105112051, 99212565, 93644192,
	88388347, 83427490, 78745065, 74325444, 70153878, 66216443,
	62499999, 58992144, 55681169, 52556025, 49606282, 46822096,
	44194173, 41713745, 39372532, 37162722, 35076939, 33108221,
	31249999, 29496072, 27840584, 26278012, 24803141, 23411048,
	22097086, 20856872, 19686266, 18581361, 17538469, 16554110,
	15624999, 14748036, 13920292, 13139006, 12401570, 11705524,
	11048543, 10428436, 9843133, 9290680, 8769234, 8277055,
	7812499, 7374018, 6960146, 6569503, 6200785, 5852762,
	5524271, 5214218, 4921566, 4645340, 4384617, 4138527,
	3906249, 3687009, 3480073, 3284751, 3100392, 2926381,
	2762135, 2607109, 2460783, 2322670, 2192308, 2069263,
	1953124, 1843504, 1740036, 1642375, 1550196, 1463190,
	1381067, 1303554, 1230391, 1161335, 1096154, 1034631,
	976562, 921752, 870018, 821187, 775098, 731595,
	690533, 651777, 615195, 580667, 548077, 517315,
	488281, 460876, 435009, 410593, 387549, 365797,
	345266, 325888, 307597, 290333, 274038, 258657,
	244140, 230438, 217504, 205296, 193774, 182898,
	172633, 162944, 153798, 145166, 137019, 129328,
	122070, 115219, 108752, 102648, 96887, 91449,
	86316, 81472, 76899, 72583, 68509, 64664,
	61035, 57609, 54376, 51324, 48443, 45724,
	43158, 40736, 38449, 36291, 34254, 32332,
	30517, 28804, 27188, 25662, 24221, 22862,
	21579, 20368, 19224, 18145, 17127, 16166,
	15258, 14402, 13594, 12831, 12110, 11431,
	10789, 10184, 9612, 9072, 8563, 8083,
	7629, 7201, 6797, 6415, 6055, 5715,
	5394, 5092, 4806, 4536, 4281, 4041,
	3814, 3600, 3398, 3207, 3027, 2857,
	2697, 2546, 2403, 2268, 2140, 2020,
	1907, 1800, 1699, 1603, 1513, 1428,
	1348, 1273, 1201, 1134, 1070, 1010,
	953, 900, 849, 801, 756, 714,
}
