package traffic

import "github.com/sirupsen/logrus"

// log 交通模型模块的日志记录器
var log = logrus.WithField("module", "traffic")
