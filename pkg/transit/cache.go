package transit

const (
	cacheCodeDigits  = 44
	cacheBaseChar    = 48
	minCacheableSize = 4
	maxCacheEntries  = cacheCodeDigits * cacheCodeDigits
)

// isCacheable 判断字符串是否进入缓存：map 键，或者以 "~:"、"~$"、"~#" 开头，且长度不少于 4。
func isCacheable(s string, asMapKey bool) bool {
	if len(s) < minCacheableSize {
		return false
	}
	if asMapKey {
		return true
	}
	return s[0] == escapeChar && (s[1] == ':' || s[1] == '$' || s[1] == tagChar)
}

func isCacheCode(s string) bool {
	return len(s) > 1 && s[0] == subChar && s != mapAsArray
}

func indexToCode(idx int) string {
	if idx < cacheCodeDigits {
		return string([]byte{subChar, byte(idx + cacheBaseChar)})
	}
	return string([]byte{
		subChar,
		byte(idx/cacheCodeDigits + cacheBaseChar),
		byte(idx%cacheCodeDigits + cacheBaseChar),
	})
}

func codeToIndex(code string) int {
	switch len(code) {
	case 2:
		return int(code[1]) - cacheBaseChar
	case 3:
		return (int(code[1])-cacheBaseChar)*cacheCodeDigits + int(code[2]) - cacheBaseChar
	}
	return -1
}

// writeCache 记录已写出的可缓存字符串，重复出现时替换为缓存码。满了之后清空重来。
type writeCache struct {
	codes map[string]string
}

func newWriteCache() *writeCache {
	return &writeCache{codes: make(map[string]string)}
}

func (c *writeCache) cache(s string, asMapKey bool) string {
	if !isCacheable(s, asMapKey) {
		return s
	}
	if code, ok := c.codes[s]; ok {
		return code
	}
	if len(c.codes) == maxCacheEntries {
		clear(c.codes)
	}
	c.codes[s] = indexToCode(len(c.codes))
	return s
}

// readCache 与 writeCache 按相同顺序登记，保存的是解码后的值。
type readCache struct {
	values []any
	idx    int
}

func newReadCache() *readCache {
	return &readCache{values: make([]any, 0, 16)}
}

func (c *readCache) put(v any) {
	if c.idx == maxCacheEntries {
		c.idx = 0
	}
	if c.idx < len(c.values) {
		c.values[c.idx] = v
	} else {
		c.values = append(c.values, v)
	}
	c.idx++
}

func (c *readCache) get(code string) (any, bool) {
	i := codeToIndex(code)
	if i < 0 || i >= len(c.values) {
		return nil, false
	}
	return c.values[i], true
}
