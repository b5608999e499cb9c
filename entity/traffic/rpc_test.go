package traffic_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"connectrpc.com/connect"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tsinghua-fib-lab/nasch-sim-oss/entity/traffic"
	"google.golang.org/protobuf/types/known/emptypb"
	"google.golang.org/protobuf/types/known/structpb"
)

func TestMonitor(t *testing.T) {
	m := mustLayout(t, deterministicParams(10, 2), "1....1....")
	monitor := traffic.NewMonitor(5)
	m.Step()
	monitor.Publish(m)
	// 发布后模型继续推进，快照不变
	m.Step()

	pattern, handler := monitor.NewHandler()
	assert.Equal(t, "/nasch.v1.TrafficService/", pattern)
	mux := http.NewServeMux()
	mux.Handle(pattern, handler)
	server := httptest.NewServer(mux)
	defer server.Close()

	ctx := context.Background()
	statsClient := connect.NewClient[emptypb.Empty, structpb.Struct](server.Client(), server.URL+traffic.GetStatisticsProcedure)
	res, err := statsClient.CallUnary(ctx, connect.NewRequest(&emptypb.Empty{}))
	require.NoError(t, err)
	fields := res.Msg.GetFields()
	assert.Equal(t, 1.0, fields["elapsed_steps"].GetNumberValue())
	assert.Equal(t, 2.0, fields["entered"].GetNumberValue())
	assert.Equal(t, 2.0, fields["average_speed"].GetNumberValue())
	assert.Equal(t, 0.0, fields["flow_rate"].GetNumberValue())

	roadClient := connect.NewClient[emptypb.Empty, structpb.Struct](server.Client(), server.URL+traffic.GetRoadProcedure)
	res, err = roadClient.CallUnary(ctx, connect.NewRequest(&emptypb.Empty{}))
	require.NoError(t, err)
	fields = res.Msg.GetFields()
	assert.Equal(t, "..2..", fields["text"].GetStringValue())
	cells := fields["cells"].GetListValue().GetValues()
	require.Len(t, cells, 10)
	assert.Equal(t, 2.0, cells[2].GetNumberValue())
	assert.Equal(t, 2.0, cells[7].GetNumberValue())
	_, isNull := cells[0].GetKind().(*structpb.Value_NullValue)
	assert.True(t, isNull)
}
