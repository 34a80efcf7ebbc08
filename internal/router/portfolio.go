package router

import "github.com/gin-gonic/gin"

func (r *Router) portfolioRoutes(rg *gin.RouterGroup) {
	portfolios := rg.Group("/portfolios")
	{
		portfolios.GET("/check-name", r.handlers.Check.CheckPortfolioName)
		portfolios.GET("/check-name/:owner", r.handlers.Check.CheckPortfolioName)
		portfolios.GET("/user/:owner", r.handlers.Portfolio.ListByOwner)
		portfolios.GET("/:id", r.handlers.Portfolio.Get)
		portfolios.GET("/:id/followers", r.handlers.Portfolio.ListFollowers)
		portfolios.GET("/:id/posts", r.handlers.Post.ListByPortfolio)

		protected := portfolios.Group("")
		protected.Use(r.auth.RequireAuth())
		{
			protected.POST("", r.handlers.Portfolio.Create)
			protected.PUT("/:id", r.handlers.Portfolio.Update)
			protected.DELETE("/:id", r.handlers.Portfolio.Delete)

			protected.POST("/:id/follow", r.handlers.Portfolio.Follow)
			protected.DELETE("/:id/follow", r.handlers.Portfolio.Unfollow)
			protected.GET("/:id/follow-status", r.handlers.Portfolio.FollowStatus)

			protected.POST("/:id/posts", r.handlers.Post.Create)
		}
	}
}

func (r *Router) postRoutes(rg *gin.RouterGroup) {
	posts := rg.Group("/posts")
	{
		posts.GET("/:id/comments", r.handlers.Post.ListComments)

		protected := posts.Group("")
		protected.Use(r.auth.RequireAuth())
		{
			protected.DELETE("/:id", r.handlers.Post.Delete)

			protected.POST("/:id/like", r.handlers.Post.Like)
			protected.DELETE("/:id/like", r.handlers.Post.Unlike)
			protected.GET("/:id/likes", r.handlers.Post.ListLikers)

			protected.POST("/:id/comments", r.handlers.Post.AddComment)
		}
	}
}
