package transit

// 线上保留符号。
const (
	sigilEscape   = "~"
	sigilTag      = "#"
	sigilSub      = "^"
	sigilReserved = "`"

	escapeChar   = '~'
	subChar      = '^'
	reservedChar = '`'
	tagChar      = '#'

	// mapAsArray 为紧凑模式下 map 的数组标记。
	mapAsArray = "^ "
)

// ground tag（单字符）。
const (
	TagNull      = "_"
	TagString    = "s"
	TagBool      = "?"
	TagInt       = "i"
	TagFloat     = "d"
	TagSpecial   = "z"
	TagBinary    = "b"
	TagBigInt    = "n"
	TagBigDec    = "f"
	TagChar      = "c"
	TagTime      = "t"
	TagTimeMilli = "m"
	TagURI       = "r"
	TagUUID      = "u"
	TagKeyword   = ":"
	TagSymbol    = "$"
	TagQuote     = "'"
)

// 结构化 tag（多字符）。
const (
	TagArray = "array"
	TagMap   = "map"
	TagSet   = "set"
	TagList  = "list"
	TagCMap  = "cmap"
	TagLink  = "link"
)

// tagMarker 是读取 "~#tag" 字符串后的中间结果，只允许出现在结构化 tag 的位置上。
type tagMarker string

// needsEscape 判断字符串首字符是否与保留符号冲突。
func needsEscape(s string) bool {
	if len(s) == 0 {
		return false
	}
	switch s[0] {
	case escapeChar, subChar, reservedChar:
		return true
	}
	return false
}

func escapeString(s string) string {
	if needsEscape(s) {
		return sigilEscape + s
	}
	return s
}

func isGroundTag(tag string) bool {
	return len(tag) == 1
}
