// Package humanencode turns opaque hash bytes into a short, pronounceable,
// log-friendly token: a run id looks like "2607301530-amber-otter" instead
// of a bare hex digest.
package humanencode

import "encoding/base64"

// words is a fixed internal list of short, pronounceable tokens. Each byte
// of the truncated hash prefix indexes one word; changing this list
// changes every future encoding, so it is frozen at compile time rather
// than configurable.
var words = [256]string{
	"amber", "arc", "ash", "aspen", "atlas", "auburn", "azure", "basil",
	"bay", "beacon", "birch", "bloom", "blue", "boulder", "brass", "brave",
	"bright", "brook", "cedar", "chalk", "charm", "cinder", "clay", "cliff",
	"clover", "coal", "coast", "cobalt", "copper", "coral", "cove", "crane",
	"crest", "crimson", "cub", "current", "dawn", "delta", "dew", "dune",
	"dusk", "eagle", "echo", "elm", "ember", "falcon", "fawn", "fern",
	"field", "fir", "flame", "flint", "fog", "forge", "fox", "frost",
	"garnet", "glade", "glen", "gold", "gorge", "grain", "granite", "grove",
	"gull", "harbor", "hare", "harvest", "hawk", "haze", "hazel", "heath",
	"helix", "heron", "hickory", "hollow", "honey", "hornet", "hull", "ibis",
	"indigo", "inlet", "iris", "iron", "ivory", "ivy", "jade", "jasper",
	"jay", "juniper", "kestrel", "kite", "lagoon", "lake", "lark", "laurel",
	"lichen", "lilac", "lime", "linden", "loam", "lotus", "lynx", "maple",
	"marsh", "meadow", "mesa", "mist", "moss", "moth", "mountain", "myrtle",
	"nectar", "nest", "nimbus", "nook", "nova", "oak", "oasis", "obsidian",
	"ochre", "olive", "onyx", "opal", "orchid", "osprey", "otter", "owl",
	"pale", "palm", "pearl", "pebble", "perch", "petal", "pewter", "pine",
	"plain", "plum", "pollen", "pond", "poplar", "prairie", "quail", "quarry",
	"quartz", "quill", "rain", "raven", "reed", "ridge", "river", "robin",
	"rose", "rowan", "ruby", "rust", "sable", "sage", "sand", "sapling",
	"saffron", "scout", "sedge", "shale", "shoal", "shore", "silt", "silver",
	"sky", "slate", "sliver", "sol", "sorrel", "sparrow", "spring", "spruce",
	"squall", "star", "stone", "storm", "stream", "sun", "swallow", "swift",
	"sycamore", "tale", "talon", "tamarack", "tangle", "teal", "terra", "thicket",
	"thistle", "thrush", "thyme", "tidal", "tide", "timber", "topaz", "torrent",
	"trail", "tundra", "twig", "umber", "valley", "vane", "vapor", "veil",
	"velvet", "verdant", "vine", "violet", "vista", "wade", "warbler", "wave",
	"wheat", "whisper", "willow", "wind", "wing", "wisp", "wolf", "wood",
	"wren", "yarrow", "yew", "zenith", "zephyr", "zinc", "apex", "arbor",
	"badger", "beetle", "blossom", "bramble", "bronze", "canyon", "cascade", "cavern",
	"cicada", "cinnamon", "coyote", "dapple", "drift", "driftwood", "elder", "emerald",
	"finch", "fjord", "foxglove", "glacier", "grotto", "heron2", "kelp", "lichen2",
}

// Encode maps each of the first two bytes of a hash to a word, suffixed
// with an unpadded URL-safe base64 tail of the remaining bytes for full
// collision safety. Two words keep the prefix short and pronounceable
// while the tail preserves the hash's entropy for programmatic comparison.
func Encode(hash []byte) string {
	if len(hash) == 0 {
		return "empty"
	}

	first := words[hash[0]]
	token := first
	if len(hash) > 1 {
		token = first + "-" + words[hash[1]]
	}

	tailStart := 2
	if tailStart >= len(hash) {
		return token
	}
	tail := base64.RawURLEncoding.EncodeToString(hash[tailStart:])
	return token + "-" + tail
}
