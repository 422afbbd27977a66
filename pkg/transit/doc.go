// Package transit 实现了一种自描述的序列化格式及其读写运行时。
//
// 格式以 JSON 作为宿主编码，提供两种线上模式：
//   - ModeJSON：紧凑模式，map 编码为 ["^ ", k, v, ...]，并对重复的 key / keyword / tag 做缓存；
//   - ModeJSONVerbose：冗长模式，map 编码为 JSON object，不做缓存，便于人工阅读。
//
// 任意语义类型通过 Handler 映射到一个很小的线上词汇表：
//   - 单字符 tag 为 ground 类型，以 "~" + tag + 字符串表示，例如 "~:foo"、"~u<uuid>"；
//   - 多字符 tag 为结构化类型，以两元素数组 ["~#tag", rep] 表示，例如 ["~#set", [1, 2, 3]]。
//
// 写入端通过 Registry 按运行时类型解析 WriteHandler，读取端按 tag 解析 ReadHandler。
// Registry 在构造后只读，可以被多个 goroutine 共享；Writer / Reader 实例本身不可并发使用。
package transit
