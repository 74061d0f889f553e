package mongodriver

import (
	"context"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"

	"github.com/circleci/mongoclient/driver"
	"github.com/circleci/mongoclient/o11y"
)

type Admin struct {
	db *mongo.Database
}

var _ driver.Admin = (*Admin)(nil)

func (a *Admin) Command(ctx context.Context, cmd bson.D) (_ bson.M, err error) {
	ctx, span := o11y.StartSpan(ctx, "mongodriver: admin command")
	defer o11y.End(span, &err)
	if len(cmd) > 0 {
		span.AddField("command", cmd[0].Key)
	}

	var res bson.M
	err = a.db.RunCommand(ctx, cmd).Decode(&res)
	if err != nil {
		return nil, err
	}
	return res, nil
}
