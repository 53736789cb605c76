package service

import (
	"github.com/renewly/renewly/internal/config"
	"github.com/renewly/renewly/internal/domain/planchange"
	"github.com/renewly/renewly/internal/domain/preorder"
	"github.com/renewly/renewly/internal/domain/product"
	"github.com/renewly/renewly/internal/domain/purchase"
	"github.com/renewly/renewly/internal/domain/subscription"
	"github.com/renewly/renewly/internal/domain/workqueue"
	"github.com/renewly/renewly/internal/email"
	"github.com/renewly/renewly/internal/logger"
	"github.com/renewly/renewly/internal/monitor"
	"github.com/renewly/renewly/internal/notifications"
	"github.com/renewly/renewly/internal/postgres"
	"github.com/renewly/renewly/internal/processor"
	"github.com/renewly/renewly/internal/types"
)

// ServiceParams bundles the dependencies shared by the billing services (for
// fx registration and tests).
type ServiceParams struct {
	Logger *logger.Logger
	Config *config.Configuration
	Clock  types.Clock

	DB postgres.IClient

	SubRepo        subscription.Repository
	PurchaseRepo   purchase.Repository
	PlanChangeRepo planchange.Repository
	PreorderRepo   preorder.Repository
	ProductRepo    product.Repository
	JobRepo        workqueue.Repository

	Processor processor.ChargeProcessor
	Mailer    email.Mailer
	Notifier  notifications.WorkflowNotifier
	Reporter  monitor.Reporter
}
