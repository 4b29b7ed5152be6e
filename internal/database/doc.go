/*
包 database 负责运行历史数据库的打开与连接池管理。

Open 按 config.DatabaseConfig 的驱动名选择 GORM 方言（postgres、mysql、
纯 Go 的 glebarez/sqlite），并交给 PoolManager 统一设置连接池参数。
PoolManager 提供 DB()、Ping()、Stats()、Close()，后台定时探活，
WithTransactionRetry 在死锁、序列化失败、sqlite 忙等场景下指数退避重试。
*/
package database
