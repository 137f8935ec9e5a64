// Package telegram 封装机器人所需的最小 Bot API 能力：
// 长轮询拉取更新、发送文本与图片、输入中状态指示。
package telegram
