// Package telemetry 封装 OpenTelemetry SDK 初始化逻辑，
// 为 ragcore 的 embedding 与检索链路提供 TracerProvider 和 MeterProvider。
// 遥测禁用时保持全局 noop 实现，不连接任何外部服务。
package telemetry
