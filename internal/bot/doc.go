// Package bot 是面向 Telegram 的编排层：为每个用户维护一条助手线程，
// 转发对话，并在助手请求部署工具时触发部署流水线。
package bot
