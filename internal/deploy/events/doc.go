// Package events 把部署流水线的阶段切换与终态广播给下游消费者，
// 提供内存通道、Redis list 与 RabbitMQ 三种驱动。
package events
