package imagesort

import "strings"

// KeywordSets maps every category to the nouns that indicate it. Keywords
// are matched as lowercase substrings of model labels and file names.
var KeywordSets = map[Category][]string{
	CategoryLiving: {
		"person", "people", "human", "woman", "child", "baby", "girl", "boy",
		"face", "groom", "diver", "player",
		"dog", "puppy", "retriever", "terrier", "spaniel", "hound", "poodle", "husky",
		"cat", "kitten", "tabby",
		"bird", "parrot", "eagle", "penguin", "duck", "chicken", "goose", "swan",
		"fish", "shark", "whale", "dolphin",
		"horse", "cow", "sheep", "goat", "hog", "deer", "rabbit", "hamster", "squirrel",
		"lion", "tiger", "bear", "wolf", "fox", "elephant", "zebra", "giraffe",
		"monkey", "gorilla", "chimpanzee", "orangutan",
		"snake", "lizard", "turtle", "frog",
		"spider", "beetle", "butterfly", "honeybee", "insect",
		"flower", "daisy", "rose", "tree", "plant", "leaf", "mushroom", "fungus",
	},
	CategoryManufactured: {
		"car", "truck", "bus", "train", "tram", "bicycle", "bike", "motorcycle",
		"scooter", "tractor", "airplane", "airliner", "boat", "ship", "canoe",
		"house", "building", "bridge", "tower", "church", "castle", "palace",
		"chair", "table", "desk", "sofa", "couch", "bed", "lamp", "door", "window",
		"computer", "laptop", "keyboard", "phone", "television", "monitor",
		"screen", "camera", "clock", "radio", "machine", "engine",
		"bottle", "cup", "mug", "glass", "plate", "bowl", "spoon", "knife",
		"vase", "basket", "bag", "backpack", "umbrella",
		"shoe", "sandal", "shirt", "jacket", "helmet", "mask",
		"ball", "toy", "guitar", "piano", "drum", "violin", "book", "pencil",
		"screwdriver", "hammer", "wheel", "seat", "fence", "bench",
	},
	CategoryNatural: {
		"mountain", "alp", "volcano", "valley", "cliff", "canyon", "geyser",
		"lake", "river", "ocean", "seashore", "beach", "coast", "shore",
		"sandbar", "sand", "dune", "desert", "island", "promontory", "reef",
		"rock", "stone", "pebble", "cave", "glacier", "iceberg", "snow",
		"cloud", "sky", "sunset", "sunrise", "rainbow", "storm", "lightning",
		"waterfall", "forest", "meadow", "field", "landscape", "earth",
		"mineral", "crystal", "moon",
	},
}

// TopLabelKeywords is the smaller representative set used when none of
// the top labels matched KeywordSets with a positive weight. It mixes the
// most common nouns with generic category words that model labels often
// carry ("vehicle", "structure", "formation").
var TopLabelKeywords = map[Category][]string{
	CategoryLiving:       {"dog", "cat", "bird", "fish", "person", "flower", "tree", "animal", "creature"},
	CategoryManufactured: {"car", "house", "building", "phone", "bottle", "vehicle", "device", "tool", "structure"},
	CategoryNatural:      {"mountain", "lake", "beach", "rock", "cloud", "valley", "formation", "scenery"},
}

// keywordHits counts how many keywords of each category occur in the
// lowercased text.
func keywordHits(lower string, sets map[Category][]string) map[Category]int {
	hits := make(map[Category]int, len(Categories))
	for _, c := range Categories {
		for _, kw := range sets[c] {
			if strings.Contains(lower, kw) {
				hits[c]++
			}
		}
	}
	return hits
}

// matchedKeywords returns the keywords of category c found in lower.
func matchedKeywords(lower string, c Category) []string {
	var out []string
	for _, kw := range KeywordSets[c] {
		if strings.Contains(lower, kw) {
			out = append(out, kw)
		}
	}
	return out
}
