package analytics

import (
	"os"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

type LogFileDataCollector struct {
	fileName string
	logger   *zap.Logger
}

func NewLogFileDataCollector(fileName string) (*LogFileDataCollector, error) {
	encoderConfig := zap.NewProductionEncoderConfig()
	encoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	encoderConfig.StacktraceKey = "" // to hide stacktrace info
	fileEncoder := zapcore.NewJSONEncoder(encoderConfig)
	logFile, err := os.OpenFile(fileName, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
	if err != nil {
		return nil, err
	}
	writer := zapcore.AddSync(logFile)
	defaultLogLevel := zapcore.InfoLevel
	core := zapcore.NewTee(zapcore.NewCore(fileEncoder, writer, defaultLogLevel))
	logger := zap.New(core, zap.AddCaller(), zap.AddStacktrace(zapcore.ErrorLevel))
	return &LogFileDataCollector{
		fileName: fileName,
		logger:   logger,
	}, nil
}

func (lc *LogFileDataCollector) RecordAction(definition string, instanceId string, action string, step string, user string) {
	lc.logger.Info("action",
		zap.String("definition", definition),
		zap.String("instance", instanceId),
		zap.String("action", action),
		zap.String("step", step),
		zap.String("user", user))
}

func (lc *LogFileDataCollector) RecordTransition(definition string, instanceId string, fromState string, toState string, user string) {
	lc.logger.Info("transition",
		zap.String("definition", definition),
		zap.String("instance", instanceId),
		zap.String("from", fromState),
		zap.String("to", toState),
		zap.String("user", user))
}
