// Package network 提供监听、接受和拨号连接的能力。
//
// 包括两种实现：
//  1. 标准库 standard 实现：监听器与服务端连接。
//  2. 高性能非阻塞库 netpoll 实现：客户端拨号。
package network
