// Package tokenizer 提供统一的 Token 计数接口，
// 支持 tiktoken 精确计数与脚本感知（CJK / 阿拉伯文）估算器，
// 用于为分块结果标注 token 数以及 embedding 输入预算。
package tokenizer
